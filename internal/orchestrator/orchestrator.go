// Package orchestrator drives one conversation turn end to end: merge the
// user's message into session slots, plan the minimal set of searches,
// dispatch them, aggregate results into ranked packages, and compose the
// reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tripweaver/tripweaver/internal/dispatch"
	"github.com/tripweaver/tripweaver/internal/nlu"
	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/rank"
	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/telemetry"
	"github.com/tripweaver/tripweaver/internal/travel"
)

// State tracks a turn through its lifecycle.
type State string

const (
	StateReceived    State = "RECEIVED"
	StateSlotsMerged State = "SLOTS_MERGED"
	StatePlanned     State = "PLANNED"
	StateDispatched  State = "DISPATCHED"
	StateAggregated  State = "AGGREGATED"
	StateResponded   State = "RESPONDED"
	StateFailed      State = "FAILED"
)

// ErrSuperseded is returned when a reset or delete cancelled this turn.
var ErrSuperseded = errors.New("turn superseded")

// Request is one user turn.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
}

// Response is the orchestrator's reply for one turn.
type Response struct {
	SessionID   string           `json:"session_id"`
	State       State            `json:"state"`
	Message     string           `json:"message"`
	Slots       travel.Slots     `json:"slots"`
	Complete    bool             `json:"has_complete_details"`
	MissingInfo []string         `json:"missing_info,omitempty"`
	SearchTasks []travel.Task    `json:"search_tasks,omitempty"`
	Reused      []travel.Domain  `json:"reused,omitempty"`
	Packages    []travel.Package `json:"packages,omitempty"`
	Notices     []string         `json:"notices,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// Archiver uploads session transcripts somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, sess *session.Session) error
}

// Orchestrator wires the turn pipeline together. Turns for the same
// session run one at a time; a later message waits its turn, while Reset
// and Delete cancel the turn in flight.
type Orchestrator struct {
	store      session.Store
	extractor  nlu.Extractor
	fallback   nlu.Extractor
	planner    *plan.Planner
	dispatcher *dispatch.Dispatcher
	ranker     *rank.Ranker
	archiver   Archiver
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	mu    sync.Mutex
	gates map[string]*sessionGate
}

// sessionGate serializes turns per session and lets Reset and Delete
// cancel the turn in flight.
type sessionGate struct {
	mu sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func (g *sessionGate) supersede() {
	g.cancelMu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.cancelMu.Unlock()
}

func (g *sessionGate) arm(cancel context.CancelFunc) {
	g.cancelMu.Lock()
	g.cancel = cancel
	g.cancelMu.Unlock()
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithFallbackExtractor sets a second extractor used when the primary
// fails; extraction degrades instead of failing the turn.
func WithFallbackExtractor(e nlu.Extractor) Option {
	return func(o *Orchestrator) { o.fallback = e }
}

// WithArchiver enables best-effort transcript archiving.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator.
func New(store session.Store, extractor nlu.Extractor, planner *plan.Planner,
	dispatcher *dispatch.Dispatcher, ranker *rank.Ranker, opts ...Option) *Orchestrator {

	o := &Orchestrator{
		store:      store,
		extractor:  extractor,
		planner:    planner,
		dispatcher: dispatcher,
		ranker:     ranker,
		logger:     slog.Default(),
		gates:      make(map[string]*sessionGate),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) gate(sessionID string) *sessionGate {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.gates[sessionID]
	if !ok {
		g = &sessionGate{}
		o.gates[sessionID] = g
	}
	return g
}

// ProcessTurn runs one conversation turn. A missing or expired session ID
// transparently gets a fresh session.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	sess, err := o.loadOrCreate(ctx, req)
	if err != nil {
		o.recordTurn(string(StateFailed), start)
		return nil, err
	}

	// A concurrent message for the same session waits here; only Reset and
	// Delete cancel a turn already in flight.
	g := o.gate(sess.ID)
	g.mu.Lock()
	defer g.mu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.arm(cancel)

	// The gate may have handed us a session another turn just saved.
	if fresh, err := o.store.Get(turnCtx, sess.ID); err == nil {
		sess = fresh
	}

	logger := telemetry.RequestLogger(o.logger, turnCtx, sess.ID)
	logger.Info("turn received", "state", StateReceived)

	resp, err := o.runTurn(turnCtx, logger, sess, req)
	if err != nil {
		if errors.Is(err, ErrSuperseded) || turnCtx.Err() != nil {
			o.recordTurn("superseded", start)
			return nil, ErrSuperseded
		}
		o.recordTurn(string(StateFailed), start)
		return nil, err
	}

	o.recordTurn(string(resp.State), start)
	return resp, nil
}

func (o *Orchestrator) recordTurn(status string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordTurn(status, time.Since(start))
	}
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, req Request) (*session.Session, error) {
	if req.SessionID != "" {
		sess, err := o.store.Get(ctx, req.SessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("load session: %w", err)
		}
		// Expired or unknown ID: start over rather than erroring the user.
		o.logger.Info("session not found, creating fresh", "session_id", req.SessionID)
	}
	sess, err := o.store.Create(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, logger *slog.Logger, sess *session.Session, req Request) (*Response, error) {
	resp := &Response{SessionID: sess.ID}

	sess.Append("user", req.Message)

	// Extract and merge slots.
	update := o.extract(ctx, logger, sess, req.Message, resp)
	changed, err := plan.Merge(&sess.Slots, update)
	if err != nil {
		logger.Warn("slot merge rejected a value", "error", err)
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("I couldn't apply part of that: %v", err))
	}
	logger.Info("slots merged", "state", StateSlotsMerged, "changed", changed)

	// Plan the minimal set of searches.
	p := o.planner.Build(sess.Slots, sess.Fingerprints)
	logger.Info("turn planned", "state", StatePlanned,
		"tasks", len(p.Tasks), "reused", len(p.Reused), "missing", p.Missing)

	resp.Slots = sess.Slots
	resp.MissingInfo = p.Missing
	resp.SearchTasks = p.Tasks
	resp.Reused = p.Reused
	resp.Complete = len(p.Missing) == 0

	if o.metrics != nil {
		for _, domain := range p.Reused {
			o.metrics.RecordReuse(string(domain))
		}
	}

	// Dispatch what changed.
	unavailable := make(map[travel.Domain]string)
	if len(p.Tasks) > 0 {
		results := o.dispatcher.Run(ctx, p.Tasks)
		if ctx.Err() != nil {
			return nil, ErrSuperseded
		}
		logger.Info("tasks dispatched", "state", StateDispatched, "count", len(results))

		for _, res := range results {
			if res.OK() {
				sess.RecordResult(res.Domain, res.Fingerprint, res.Items)
				continue
			}
			if res.Failure.Reason == dispatch.ReasonCancelled {
				return nil, ErrSuperseded
			}
			unavailable[res.Domain] = failureText(res.Failure)
			logger.Warn("search unavailable", "domain", res.Domain,
				"reason", res.Failure.Reason)
		}
	}

	// Aggregate everything usable, cached and fresh alike. A domain that
	// failed this turn falls back to its last successful results; its
	// fingerprint stays stale so the next turn retries the search.
	outcome := o.ranker.Rank(rank.Input{
		Slots:       sess.Slots,
		Items:       usableItems(sess),
		Unavailable: unavailable,
	})
	resp.Packages = outcome.Packages
	resp.Notices = outcome.Notices
	logger.Info("results aggregated", "state", StateAggregated,
		"packages", len(outcome.Packages), "notices", len(outcome.Notices))
	if o.metrics != nil {
		o.metrics.RecordPackages(len(outcome.Packages))
	}

	resp.Message = composeMessage(sess.Slots, p, outcome, len(unavailable) > 0)
	sess.Append("assistant", resp.Message)

	// Persist; a failed save degrades to a warning rather than losing the
	// reply we already computed.
	if err := o.store.Save(ctx, sess); err != nil {
		logger.Error("session save failed", "error", err)
		resp.Warnings = append(resp.Warnings,
			"I couldn't save this conversation; your next message may need to repeat details.")
	}

	if o.archiver != nil {
		if err := o.archiver.Archive(ctx, sess); err != nil {
			logger.Warn("transcript archive failed", "error", err)
		}
	}

	resp.State = StateResponded
	logger.Info("turn responded", "state", StateResponded)
	return resp, nil
}

// extract runs the primary extractor with fallback degradation. A total
// extraction failure yields an empty update plus a warning; the follow-up
// prompts will re-ask for anything lost.
func (o *Orchestrator) extract(ctx context.Context, logger *slog.Logger, sess *session.Session, message string, resp *Response) travel.SlotUpdate {
	history := sess.History[:len(sess.History)-1] // current message excluded

	update, err := o.extractor.Extract(ctx, message, history, sess.Slots)
	if err == nil {
		return update
	}
	logger.Warn("slot extraction failed", "error", err)

	if o.fallback != nil {
		if update, ferr := o.fallback.Extract(ctx, message, history, sess.Slots); ferr == nil {
			logger.Info("fallback extraction used")
			return update
		}
	}
	resp.Warnings = append(resp.Warnings,
		"I had trouble understanding that; could you rephrase?")
	return travel.SlotUpdate{}
}

// usableItems returns every domain's latest successful results. Fresh
// results were already recorded on the session; for a domain that failed
// this turn the cached entry, when present, serves as the fallback.
func usableItems(sess *session.Session) map[travel.Domain][]travel.Item {
	items := make(map[travel.Domain][]travel.Item, len(sess.LastResults))
	for domain, cached := range sess.LastResults {
		items[domain] = cached
	}
	return items
}

func failureText(f *dispatch.Failure) string {
	switch f.Reason {
	case dispatch.ReasonTimeout:
		return "search timed out"
	case dispatch.ReasonBlocked:
		return "search source blocked us"
	case dispatch.ReasonInvalidResponse:
		return "search returned unusable data"
	default:
		return "search kept failing"
	}
}

// Reset clears a session's slots, history, and cached results, cancelling
// any turn in flight. The session ID stays valid.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	g := o.gate(sessionID)
	g.supersede()
	g.mu.Lock()
	defer g.mu.Unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Reset()
	if err := o.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save reset session: %w", err)
	}
	o.logger.Info("session reset", "session_id", sessionID)
	return nil
}

// Delete removes a session entirely, cancelling any turn in flight.
func (o *Orchestrator) Delete(ctx context.Context, sessionID string) error {
	g := o.gate(sessionID)
	g.supersede()
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := o.store.Delete(ctx, sessionID); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.gates, sessionID)
	o.mu.Unlock()
	return nil
}
