package history

import "time"

// Event records the outcome of one accepted scan. The raw payload is not
// kept; only the extracted token and the submission result are logged.
type Event struct {
	ID        string    `json:"id"`
	StationID string    `json:"station_id"`
	Route     string    `json:"route"`
	Token     string    `json:"token"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	ScannedAt time.Time `json:"scanned_at"`
	CreatedAt time.Time `json:"created_at"`
}
