package scan

import (
	"errors"
	"strings"
)

// tokenLabel marks the payload line carrying the attendance code.
const tokenLabel = "Kode QR"

// ErrInvalidPayload indicates the decoded text has no code-token line.
var ErrInvalidPayload = errors.New("payload has no code token")

// ExtractToken scans a decoded payload for the first line of the form
// "Kode QR: <token>" and returns the trimmed token after the first colon.
func ExtractToken(raw string) (string, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, tokenLabel) {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		token := strings.TrimSpace(line[idx+1:])
		if token == "" {
			continue
		}
		return token, nil
	}
	return "", ErrInvalidPayload
}
