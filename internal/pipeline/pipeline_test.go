package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scanstation/internal/backend"
	"scanstation/internal/feedback"
	"scanstation/internal/history"
	"scanstation/internal/schedule"
)

const validPayload = "Nama: Budi\nKode QR: ABC123\nKelas: 7A"

type fakeSubmitter struct {
	windowErr  error
	result     backend.Result
	block      chan struct{}
	calls      atomic.Int64
	mu         sync.Mutex
	lastRoute  schedule.Route
	lastToken  string
	windowCall atomic.Int64
}

func (f *fakeSubmitter) AttendanceWindow(context.Context) (schedule.WindowConfig, error) {
	f.windowCall.Add(1)
	if f.windowErr != nil {
		return schedule.WindowConfig{}, f.windowErr
	}
	return schedule.WindowConfig{
		CheckInStart:     schedule.TimeOfDay{Hour: 7},
		LateThreshold:    schedule.TimeOfDay{Hour: 7, Minute: 30},
		AbsenceThreshold: schedule.TimeOfDay{Hour: 9},
		CheckOutStart:    schedule.TimeOfDay{Hour: 15},
	}, nil
}

func (f *fakeSubmitter) Submit(_ context.Context, route schedule.Route, token string) backend.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastRoute = route
	f.lastToken = token
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result
}

func clockAt(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 9, 1, hour, 0, 0, 0, time.Local)
	}
}

func newTestPipeline(sub Submitter, now func() time.Time) (*Pipeline, *feedback.Presenter) {
	presenter := feedback.NewPresenter(feedback.Silent{}, time.Minute)
	p := New(Config{
		StationID: "test-station",
		Cooldown:  20 * time.Millisecond,
		Submitter: sub,
		Presenter: presenter,
		Now:       now,
	})
	return p, presenter
}

func TestSingleFlight(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}, block: make(chan struct{})}
	p, _ := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	var wg sync.WaitGroup
	var dropped atomic.Int64
	done := make(chan Outcome, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		done <- p.HandleDecode(context.Background(), validPayload)
	}()

	// Wait until the submission is in flight.
	for sub.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if out := p.HandleDecode(context.Background(), validPayload); out.Status == StatusDropped {
				dropped.Add(1)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(sub.block)
	wg.Wait()

	if sub.calls.Load() != 1 {
		t.Fatalf("expected exactly one submission, got %d", sub.calls.Load())
	}
	if dropped.Load() != 10 {
		t.Fatalf("expected 10 dropped decodes, got %d", dropped.Load())
	}
	if out := <-done; out.Status != StatusProcessed || !out.OK {
		t.Fatalf("unexpected winner outcome %+v", out)
	}
}

func TestCooldown(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	p, _ := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusProcessed {
		t.Fatalf("first decode should process, got %+v", out)
	}
	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusDropped {
		t.Fatalf("decode during cool-down should drop, got %+v", out)
	}

	time.Sleep(50 * time.Millisecond)
	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusProcessed {
		t.Fatalf("decode after cool-down should process, got %+v", out)
	}
}

func TestManualResetSkipsCooldown(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	presenter := feedback.NewPresenter(feedback.Silent{}, time.Minute)
	p := New(Config{
		StationID: "test-station",
		Cooldown:  time.Hour,
		Submitter: sub,
		Presenter: presenter,
		Now:       clockAt(8),
	})
	defer p.Close()

	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusProcessed {
		t.Fatalf("first decode should process, got %+v", out)
	}
	p.Reset()
	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusProcessed {
		t.Fatalf("decode after reset should process, got %+v", out)
	}
}

func TestEmptyPayloadIgnored(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	p, _ := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	if out := p.HandleDecode(context.Background(), "   "); out.Status != StatusIgnored {
		t.Fatalf("expected ignored, got %+v", out)
	}
	// An ignored decode must not consume the debounce slot.
	if out := p.HandleDecode(context.Background(), validPayload); out.Status != StatusProcessed {
		t.Fatalf("expected processed after ignored decode, got %+v", out)
	}
}

func TestRoutingByWallClock(t *testing.T) {
	cases := []struct {
		hour int
		want schedule.Route
	}{
		{8, schedule.RouteCheckIn},
		{16, schedule.RouteCheckOut},
	}
	for _, tc := range cases {
		sub := &fakeSubmitter{result: backend.Result{OK: true}}
		p, _ := newTestPipeline(sub, clockAt(tc.hour))
		out := p.HandleDecode(context.Background(), validPayload)
		p.Close()

		if out.Route != tc.want {
			t.Fatalf("at %02d:00 expected route %s, got %s", tc.hour, tc.want, out.Route)
		}
		sub.mu.Lock()
		gotRoute, gotToken := sub.lastRoute, sub.lastToken
		sub.mu.Unlock()
		if gotRoute != tc.want || gotToken != "ABC123" {
			t.Fatalf("submitter saw route=%s token=%s", gotRoute, gotToken)
		}
	}
}

func TestConfigMissingBlocksSubmitter(t *testing.T) {
	sub := &fakeSubmitter{windowErr: errors.New("backend down")}
	p, presenter := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	out := p.HandleDecode(context.Background(), validPayload)
	if out.Status != StatusProcessed || out.OK || out.Message != MsgConfigMissing {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if sub.calls.Load() != 0 {
		t.Fatalf("submitter must not be invoked without configuration")
	}
	if got := presenter.Snapshot().Message; got != MsgConfigMissing {
		t.Fatalf("expected configuration message, got %q", got)
	}
}

func TestWindowFetchedOncePerSession(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	p, _ := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	p.Start(context.Background())
	_ = p.HandleDecode(context.Background(), validPayload)
	time.Sleep(50 * time.Millisecond)
	_ = p.HandleDecode(context.Background(), validPayload)

	if sub.windowCall.Load() != 1 {
		t.Fatalf("expected one window fetch, got %d", sub.windowCall.Load())
	}
}

func TestInvalidPayloadSkipsNetwork(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	p, presenter := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	out := p.HandleDecode(context.Background(), "Nama: Budi\nKelas: 7A")
	if out.Status != StatusProcessed || out.OK || out.Message != MsgInvalidPayload {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if sub.calls.Load() != 0 {
		t.Fatalf("invalid payload must not reach the network")
	}
	if got := presenter.Snapshot().Message; got != MsgInvalidPayload {
		t.Fatalf("expected invalid payload message, got %q", got)
	}
}

func TestRejectionSurfacesRemoteMessage(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{Message: "Siswa sudah absen"}}
	p, presenter := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	out := p.HandleDecode(context.Background(), validPayload)
	if out.OK || out.Message != "Siswa sudah absen" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := presenter.Snapshot().Message; got != "Siswa sudah absen" {
		t.Fatalf("expected remote message, got %q", got)
	}
}

func TestSuccessShowsOverlayOnly(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	p, presenter := newTestPipeline(sub, clockAt(8))
	defer p.Close()

	out := p.HandleDecode(context.Background(), validPayload)
	if !out.OK || out.Token != "ABC123" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	snap := presenter.Snapshot()
	if snap.Message != "" {
		t.Fatalf("success must not set an error message, got %q", snap.Message)
	}
	if snap.Overlay != validPayload {
		t.Fatalf("expected payload overlay, got %q", snap.Overlay)
	}
}

func TestOutcomesRecorded(t *testing.T) {
	sub := &fakeSubmitter{result: backend.Result{OK: true}}
	var recorded []history.Event
	p := New(Config{
		StationID: "test-station",
		Cooldown:  time.Millisecond,
		Submitter: sub,
		Presenter: feedback.NewPresenter(feedback.Silent{}, time.Minute),
		Now:       clockAt(8),
		OnOutcome: func(evt history.Event) { recorded = append(recorded, evt) },
	})
	defer p.Close()

	_ = p.HandleDecode(context.Background(), validPayload)
	if len(recorded) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(recorded))
	}
	evt := recorded[0]
	if evt.StationID != "test-station" || evt.Route != "checkin" || evt.Token != "ABC123" || !evt.OK {
		t.Fatalf("unexpected event %+v", evt)
	}
}
