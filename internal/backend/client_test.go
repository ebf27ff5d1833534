package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"scanstation/internal/schedule"
)

func TestAttendanceWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pengaturan-absen" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer station-token" {
			t.Fatalf("unexpected authorization %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"jam_masuk":     "06:30:00",
			"jam_terlambat": "07:15:00",
			"jam_alpa":      "09:00:00",
			"jam_pulang":    "15:00:00",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "station-token", false)
	cfg, err := c.AttendanceWindow(context.Background())
	if err != nil {
		t.Fatalf("attendance window: %v", err)
	}
	if cfg.CheckInStart.String() != "06:30:00" || cfg.CheckOutStart.String() != "15:00:00" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestAttendanceWindowMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"jam_masuk": "06:30:00"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", false)
	if _, err := c.AttendanceWindow(context.Background()); err == nil {
		t.Fatalf("expected malformed config to fail")
	}
}

func TestSubmitRoutesAndBody(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["kode_qr"] != "ABC123" {
			t.Fatalf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", false)

	if res := c.Submit(context.Background(), schedule.RouteCheckIn, "ABC123"); !res.OK {
		t.Fatalf("expected check-in success, got %+v", res)
	}
	if gotPath != "/api/absen-masuk" {
		t.Fatalf("expected check-in path, got %s", gotPath)
	}

	if res := c.Submit(context.Background(), schedule.RouteCheckOut, "ABC123"); !res.OK {
		t.Fatalf("expected check-out success, got %+v", res)
	}
	if gotPath != "/api/absen-pulang" {
		t.Fatalf("expected check-out path, got %s", gotPath)
	}
}

func TestSubmitRejectionMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "Siswa sudah absen"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", false)
	res := c.Submit(context.Background(), schedule.RouteCheckIn, "ABC123")
	if res.OK || res.Message != "Siswa sudah absen" {
		t.Fatalf("expected remote message, got %+v", res)
	}
}

func TestSubmitFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL, "", false)
	res := c.Submit(context.Background(), schedule.RouteCheckIn, "ABC123")
	if res.OK || res.Message != FallbackMessage {
		t.Fatalf("expected fallback message, got %+v", res)
	}
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, "", false)
	res := c.Submit(context.Background(), schedule.RouteCheckIn, "ABC123")
	if res.OK || res.Message != FallbackMessage {
		t.Fatalf("expected fallback on transport error, got %+v", res)
	}
}

func TestSubmitExactlyOneRequest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", false)
	_ = c.Submit(context.Background(), schedule.RouteCheckIn, "ABC123")
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", calls.Load())
	}
}
