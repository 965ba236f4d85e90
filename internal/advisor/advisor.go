/*
Package advisor runs a conversational turn end to end.

It merges the filters a session has accumulated with those stated in the
current query, retrieves candidates, decides whether to ask a follow-up
question and otherwise hands the short list to the recommender.
*/
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/analytics"
	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/clarify"
	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/recommend"
	"github.com/khanglvm/torque-advisor/internal/search"
	"github.com/khanglvm/torque-advisor/internal/session"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// DefaultUpstreamTimeout bounds each embedding or recommendation call.
const DefaultUpstreamTimeout = 60 * time.Second

// refinementWords is the longest query treated as a refinement of the
// previous one.
const refinementWords = 2

// ErrUpstream wraps failures of the embedding or recommendation service.
var ErrUpstream = errors.New("upstream service failure")

// EventRecorder receives completed turns.
type EventRecorder interface {
	Record(event analytics.TurnEvent)
}

// Result is the outcome of Ask.
type Result struct {
	Response  turn.Response `json:"response"`
	SessionID string        `json:"session_id"`
}

// Advisor orchestrates retrieval, clarification and recommendation.
type Advisor struct {
	retriever   *search.Retriever
	clarifier   *clarify.Engine
	recommender recommend.Recommender
	sessions    session.Store
	recorder    EventRecorder
	metrics     Metrics
	logger      *zap.Logger
	timeout     time.Duration
	topK        int
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithSessions sets the session store used by Ask.
func WithSessions(s session.Store) Option {
	return func(a *Advisor) { a.sessions = s }
}

// WithRecorder sets where completed turns are reported.
func WithRecorder(r EventRecorder) Option {
	return func(a *Advisor) { a.recorder = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Advisor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithUpstreamTimeout bounds each upstream call.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTopK sets how many neighbours unfiltered retrieval considers.
func WithTopK(k int) Option {
	return func(a *Advisor) {
		if k > 0 {
			a.topK = k
		}
	}
}

// New creates an Advisor. Without WithSessions an in-memory store is used.
func New(retriever *search.Retriever, clarifier *clarify.Engine, recommender recommend.Recommender, opts ...Option) *Advisor {
	a := &Advisor{
		retriever:   retriever,
		clarifier:   clarifier,
		recommender: recommender,
		metrics:     NoopMetrics{},
		logger:      zap.NewNop(),
		timeout:     DefaultUpstreamTimeout,
		topK:        search.DefaultTopK,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sessions == nil {
		a.sessions = session.NewMemoryStore(session.WithLogger(a.logger))
	}
	return a
}

// Sessions returns the session store.
func (a *Advisor) Sessions() session.Store { return a.sessions }

// Ask runs one turn for sessionID, generating an id when it is empty. Turns
// on the same session are serialised. On error an existing conversation is
// left untouched and a session that has no turns yet is discarded.
func (a *Advisor) Ask(ctx context.Context, question, sessionID string) (Result, error) {
	generated := sessionID == ""
	if generated {
		sessionID = uuid.NewString()
	}

	unlock := a.sessions.Lock(sessionID)
	defer unlock()

	var sess session.Session
	if generated {
		sess = a.sessions.Create(sessionID)
	} else {
		sess = a.sessions.GetOrCreate(sessionID)
	}

	resp, out, err := a.respond(ctx, question, &sess)
	if err != nil {
		if len(sess.History) == 0 {
			a.sessions.Delete(sessionID)
		}
		a.metrics.SetActiveSessions(a.sessions.Stats().ActiveSessions)
		return Result{SessionID: sessionID}, err
	}

	a.sessions.RecordTurn(sessionID, question, resp)
	a.metrics.SetActiveSessions(a.sessions.Stats().ActiveSessions)
	if a.recorder != nil {
		a.recorder.Record(analytics.NewTurnEvent(sessionID, question, resp, out.results, out.filters))
	}
	return Result{Response: resp, SessionID: sessionID}, nil
}

// Respond answers query in the context of sess, which may be nil. It does not
// modify sess.
func (a *Advisor) Respond(ctx context.Context, query string, sess *session.Session) (turn.Response, error) {
	resp, _, err := a.respond(ctx, query, sess)
	return resp, err
}

type outcome struct {
	results int
	filters filter.Set
}

func (a *Advisor) respond(ctx context.Context, query string, sess *session.Session) (turn.Response, outcome, error) {
	start := time.Now()

	var accumulated filter.Set
	if sess != nil {
		accumulated = sess.Filters.Clone()
	}
	current := filter.Extract(query)
	specific := a.clarifier.NamesSpecificTool(query)

	searchText := query
	if sess != nil && sess.LastQuery != "" && len(strings.Fields(query)) <= refinementWords && !specific {
		searchText = sess.LastQuery + " " + query
	}

	merged := current
	if !specific {
		merged = accumulated.Merge(current)
	}

	results, err := a.retrieve(ctx, searchText)
	if err != nil {
		return turn.Response{}, outcome{}, err
	}
	if !merged.IsEmpty() && !accumulated.IsEmpty() {
		results = filter.Apply(results, merged)
	}

	out := outcome{results: len(results), filters: merged}
	log := a.logger.With(
		zap.String("search_text", searchText),
		zap.Object("filters", merged),
		zap.Int("results", len(results)),
	)

	if need, reason := a.clarifier.Decide(query, merged, len(results)); need {
		c := a.clarifier.Explain(query, merged, results, a.retriever.Catalog())
		c.Filters = merged.Clone()
		log.Debug("asking for clarification", zap.String("reason", string(reason)))
		a.metrics.ObserveClarification(string(reason))
		resp := turn.NewClarification(c)
		a.metrics.ObserveTurn(resp.Kind, time.Since(start))
		return resp, out, nil
	}

	raw, err := a.recommend(ctx, recommend.Request{Query: query, Candidates: results, Filters: merged})
	if err != nil {
		return turn.Response{}, outcome{}, err
	}

	resp := recommend.Parse(raw)
	if resp.Kind == turn.KindError {
		log.Warn("recommendation output was not usable", zap.String("error", resp.Error.Error))
	} else {
		log.Debug("recommended tool", zap.String("tool", resp.Recommendation.ToolName))
	}
	a.metrics.ObserveTurn(resp.Kind, time.Since(start))
	return resp, out, nil
}

func (a *Advisor) retrieve(ctx context.Context, text string) ([]catalog.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	results, err := a.retriever.Retrieve(ctx, text, a.topK)
	a.metrics.ObserveRetrieval(time.Since(start), err)
	if err != nil {
		a.metrics.ObserveUpstreamFailure(StageRetrieval)
		a.logger.Error("retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("%w: retrieval: %w", ErrUpstream, err)
	}
	return results, nil
}

func (a *Advisor) recommend(ctx context.Context, req recommend.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.recommender.Recommend(ctx, req)
	if err != nil {
		a.metrics.ObserveUpstreamFailure(StageRecommend)
		a.logger.Error("recommendation failed", zap.Error(err))
		return "", fmt.Errorf("%w: recommend: %w", ErrUpstream, err)
	}
	return raw, nil
}
