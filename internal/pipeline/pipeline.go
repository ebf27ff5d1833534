package pipeline

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"scanstation/internal/backend"
	"scanstation/internal/feedback"
	"scanstation/internal/history"
	"scanstation/internal/metrics"
	"scanstation/internal/scan"
	"scanstation/internal/schedule"
)

// Operator-facing messages.
const (
	MsgConfigMissing  = "pengaturan jam tidak tersedia"
	MsgInvalidPayload = "kode QR tidak valid"
)

// Status classifies what happened to one decode event.
type Status string

const (
	StatusIgnored   Status = "ignored"   // empty payload, no state change
	StatusDropped   Status = "dropped"   // debouncer busy
	StatusProcessed Status = "processed" // ran the pipeline to completion
)

// Outcome is returned to the decode caller.
type Outcome struct {
	Status  Status         `json:"status"`
	Route   schedule.Route `json:"route,omitempty"`
	Token   string         `json:"token,omitempty"`
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
}

// Submitter is the remote side of the pipeline.
type Submitter interface {
	AttendanceWindow(ctx context.Context) (schedule.WindowConfig, error)
	Submit(ctx context.Context, route schedule.Route, codeToken string) backend.Result
}

// Config wires a pipeline together.
type Config struct {
	StationID string
	Cooldown  time.Duration
	Submitter Submitter
	Presenter *feedback.Presenter
	Metrics   *metrics.Metrics
	Now       func() time.Time
	// OnOutcome receives every processed scan for the audit trail.
	OnOutcome func(evt history.Event)
}

// Pipeline runs one decode event through debounce, routing, submission and
// feedback. At most one submission is in flight at any time; decode events
// arriving while one is running are dropped, never queued.
type Pipeline struct {
	stationID string
	deb       *scan.Debouncer
	submitter Submitter
	presenter *feedback.Presenter
	met       *metrics.Metrics
	now       func() time.Time
	onOutcome func(evt history.Event)

	mu     sync.Mutex
	window *schedule.WindowConfig
}

// New creates a pipeline; the attendance window is fetched lazily on the
// first scan and cached for the session.
func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	presenter := cfg.Presenter
	if presenter == nil {
		presenter = feedback.NewPresenter(feedback.Silent{}, 0)
	}
	return &Pipeline{
		stationID: cfg.StationID,
		deb:       scan.NewDebouncer(cfg.Cooldown),
		submitter: cfg.Submitter,
		presenter: presenter,
		met:       cfg.Metrics,
		now:       now,
		onOutcome: cfg.OnOutcome,
	}
}

// Start warms the attendance window cache so the first scan does not pay the
// fetch. A failure only logs; scans report the missing configuration until a
// later fetch succeeds.
func (p *Pipeline) Start(ctx context.Context) {
	if _, err := p.windowConfig(ctx); err != nil {
		log.Printf("attendance window not loaded yet: %v", err)
	}
}

// HandleDecode runs one decode callback through the pipeline.
func (p *Pipeline) HandleDecode(ctx context.Context, raw string) Outcome {
	if strings.TrimSpace(raw) == "" {
		p.countScan(metrics.ScanIgnored)
		return Outcome{Status: StatusIgnored}
	}
	if !p.deb.TryAcquire() {
		p.countScan(metrics.ScanDropped)
		return Outcome{Status: StatusDropped}
	}
	defer p.deb.Release()
	p.countScan(metrics.ScanAccepted)

	out := p.process(ctx, raw)
	p.record(out)
	return out
}

func (p *Pipeline) process(ctx context.Context, raw string) Outcome {
	cfg, err := p.windowConfig(ctx)
	if err != nil {
		p.presenter.Failure(MsgConfigMissing)
		p.countSubmission("none", metrics.OutcomeConfigMissing)
		return Outcome{Status: StatusProcessed, Message: MsgConfigMissing}
	}

	route, err := schedule.ClassifyRoute(cfg, p.now())
	if err != nil {
		p.presenter.Failure(MsgConfigMissing)
		p.countSubmission("none", metrics.OutcomeConfigMissing)
		return Outcome{Status: StatusProcessed, Message: MsgConfigMissing}
	}

	token, err := scan.ExtractToken(raw)
	if err != nil {
		p.presenter.Failure(MsgInvalidPayload)
		p.countSubmission(string(route), metrics.OutcomeInvalidPayload)
		return Outcome{Status: StatusProcessed, Route: route, Message: MsgInvalidPayload}
	}

	res := p.submitter.Submit(ctx, route, token)
	if res.OK {
		p.presenter.Success(raw)
		p.countSubmission(string(route), metrics.OutcomeOK)
	} else {
		p.presenter.Failure(res.Message)
		p.countSubmission(string(route), metrics.OutcomeRejected)
	}
	return Outcome{Status: StatusProcessed, Route: route, Token: token, OK: res.OK, Message: res.Message}
}

// Reset forces the debouncer idle for manual recovery.
func (p *Pipeline) Reset() {
	p.deb.Reset()
}

// Close tears the pipeline down; pending cool-down timers become no-ops.
func (p *Pipeline) Close() {
	p.deb.Close()
}

// windowConfig returns the cached attendance window, fetching it once. When
// the fetch fails the cache stays empty and the next scan retries.
func (p *Pipeline) windowConfig(ctx context.Context) (*schedule.WindowConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.window != nil {
		return p.window, nil
	}
	cfg, err := p.submitter.AttendanceWindow(ctx)
	if err != nil {
		return nil, err
	}
	p.window = &cfg
	return p.window, nil
}

func (p *Pipeline) record(out Outcome) {
	if p.onOutcome == nil {
		return
	}
	p.onOutcome(history.Event{
		StationID: p.stationID,
		Route:     string(out.Route),
		Token:     out.Token,
		OK:        out.OK,
		Message:   out.Message,
		ScannedAt: p.now().UTC(),
	})
}

func (p *Pipeline) countScan(result string) {
	if p.met != nil {
		p.met.Scans.WithLabelValues(result).Inc()
	}
}

func (p *Pipeline) countSubmission(route, outcome string) {
	if p.met != nil {
		p.met.Submissions.WithLabelValues(route, outcome).Inc()
	}
}
