package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scanstation/internal/schedule"
)

// FallbackMessage is shown when the backend rejects a scan without a reason.
const FallbackMessage = "Anda sudah melakukan absensi hari ini"

// Result is the outcome of one submission attempt.
type Result struct {
	OK      bool
	Message string
}

// Client calls the school backend's attendance endpoints.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, submissions succeed without any
// network call so a station can run against no backend during development.
func New(baseURL, token string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AttendanceWindow fetches the configured daily boundaries. Called once per
// scanning session; the config is immutable for the session's duration.
func (c *Client) AttendanceWindow(ctx context.Context) (schedule.WindowConfig, error) {
	if c.Skip {
		return schedule.WindowConfig{
			CheckInStart:     schedule.TimeOfDay{Hour: 6, Minute: 30},
			LateThreshold:    schedule.TimeOfDay{Hour: 7, Minute: 15},
			AbsenceThreshold: schedule.TimeOfDay{Hour: 9},
			CheckOutStart:    schedule.TimeOfDay{Hour: 15},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/pengaturan-absen", nil)
	if err != nil {
		return schedule.WindowConfig{}, err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return schedule.WindowConfig{}, fmt.Errorf("attendance window request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return schedule.WindowConfig{}, fmt.Errorf("attendance window error %s: %s", resp.Status, string(body))
	}

	var out struct {
		JamMasuk     string `json:"jam_masuk"`
		JamTerlambat string `json:"jam_terlambat"`
		JamAlpa      string `json:"jam_alpa"`
		JamPulang    string `json:"jam_pulang"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return schedule.WindowConfig{}, fmt.Errorf("decode attendance window: %w", err)
	}
	return schedule.ParseWindowConfig(out.JamMasuk, out.JamTerlambat, out.JamAlpa, out.JamPulang)
}

// Submit posts the code token to the endpoint implied by the route. Exactly
// one request per call, no retry. Transport errors and remote rejections both
// map to a failed Result; the remote message wins when present.
func (c *Client) Submit(ctx context.Context, route schedule.Route, codeToken string) Result {
	if c.Skip {
		return Result{OK: true}
	}

	path := "/api/absen-masuk"
	if route == schedule.RouteCheckOut {
		path = "/api/absen-pulang"
	}

	payload, _ := json.Marshal(map[string]string{"kode_qr": codeToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Result{Message: FallbackMessage}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{Message: FallbackMessage}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var out struct {
			Msg string `json:"msg"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Msg != "" {
			return Result{Message: out.Msg}
		}
		return Result{Message: FallbackMessage}
	}
	return Result{OK: true}
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
