package advisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanglvm/torque-advisor/internal/analytics"
	"github.com/khanglvm/torque-advisor/internal/catalog"
	"github.com/khanglvm/torque-advisor/internal/clarify"
	"github.com/khanglvm/torque-advisor/internal/filter"
	"github.com/khanglvm/torque-advisor/internal/recommend"
	"github.com/khanglvm/torque-advisor/internal/search"
	"github.com/khanglvm/torque-advisor/internal/session"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// orderRanker ranks the catalog in a fixed order and remembers the queries it saw.
type orderRanker struct {
	mu      sync.Mutex
	order   []int
	err     error
	queries []string
}

func (r *orderRanker) Rank(_ context.Context, query string, k int) ([]search.Neighbor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.err != nil {
		return nil, r.err
	}
	out := make([]search.Neighbor, 0, k)
	for i, idx := range r.order {
		if i == k {
			break
		}
		out = append(out, search.Neighbor{Index: idx, Distance: float64(i)})
	}
	return out, nil
}

func (r *orderRanker) lastQuery() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[len(r.queries)-1]
}

type fakeRecommender struct {
	mu       sync.Mutex
	raw      string
	err      error
	block    bool
	requests []recommend.Request
}

func (f *fakeRecommender) Recommend(ctx context.Context, req recommend.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if f.raw != "" {
		return f.raw, nil
	}
	name := "none"
	if len(req.Candidates) > 0 {
		name = req.Candidates[0].ToolName
	}
	return fmt.Sprintf(`Sure: {"tool_name": %q, "confidence": "high"}`, name), nil
}

func (f *fakeRecommender) lastRequest() recommend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []analytics.TurnEvent
}

func (f *fakeRecorder) Record(e analytics.TurnEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

type countingMetrics struct {
	NoopMetrics
	mu             sync.Mutex
	clarifications []string
	failures       []string
}

func (m *countingMetrics) ObserveClarification(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clarifications = append(m.clarifications, reason)
}

func (m *countingMetrics) ObserveUpstreamFailure(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, stage)
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Tool{
		{ToolName: "Cordless Nutrunner", Category: "Nutrunner", ApplicationType: filter.ManualPortable, Voltage: "18V", TorqueRange: "5-60"},
		{ToolName: "Fixtured Nutrunner", Category: "Nutrunner", ApplicationType: filter.Automation, Voltage: "400V", TorqueRange: "20-200"},
		{ToolName: "Pistol Nutrunner", Category: "Nutrunner", ApplicationType: filter.Manual, Voltage: "230V", TorqueRange: "10-80"},
		{ToolName: "Angle Nutrunner", Category: "Nutrunner", ApplicationType: filter.Manual, Voltage: "400V", TorqueRange: "30-150"},
		{ToolName: "Torque Analyzer", Category: "Verification", ApplicationType: filter.Verification, TorqueRange: "NaN"},
	})
}

type fixture struct {
	advisor     *Advisor
	ranker      *orderRanker
	recommender *fakeRecommender
	recorder    *fakeRecorder
	metrics     *countingMetrics
	sessions    *session.MemoryStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	c := testCatalog()
	f := &fixture{
		ranker:      &orderRanker{order: []int{3, 2, 1, 0, 4}},
		recommender: &fakeRecommender{},
		recorder:    &fakeRecorder{},
		metrics:     &countingMetrics{},
		sessions:    session.NewMemoryStore(),
	}
	logger := zaptest.NewLogger(t)
	base := []Option{
		WithSessions(f.sessions),
		WithRecorder(f.recorder),
		WithMetrics(f.metrics),
		WithLogger(logger),
	}
	f.advisor = New(
		search.NewRetriever(c, f.ranker, logger),
		clarify.NewEngine(c),
		f.recommender,
		append(base, opts...)...,
	)
	return f
}

func TestRespond_FilteredRecommendation(t *testing.T) {
	f := newFixture(t)

	resp, err := f.advisor.Respond(context.Background(), "18V cordless nutrunner for 50Nm", nil)
	require.NoError(t, err)

	require.Equal(t, turn.KindRecommendation, resp.Kind)
	assert.Equal(t, "Cordless Nutrunner", resp.Recommendation.ToolName)

	req := f.recommender.lastRequest()
	want := filter.Set{Voltage: "18V", ApplicationType: filter.ManualPortable}.WithTorque(50)
	assert.Equal(t, want, req.Filters)
	require.Len(t, req.Candidates, 1)
	assert.Equal(t, "18V cordless nutrunner for 50Nm", req.Query)
}

func TestRespond_NoMatchClarifies(t *testing.T) {
	f := newFixture(t)

	resp, err := f.advisor.Respond(context.Background(), "48V gadget", nil)
	require.NoError(t, err)

	require.True(t, resp.IsClarification())
	assert.Equal(t, "I couldn't find any tools matching your criteria. Could you provide more details?", resp.Clarification.Message)
	assert.Equal(t, filter.Set{Voltage: "48V"}, resp.Filters())
	assert.Empty(t, f.recommender.requests)
	assert.Equal(t, []string{string(clarify.ReasonNoResults)}, f.metrics.clarifications)
}

func TestAsk_GeneratesSessionID(t *testing.T) {
	f := newFixture(t)

	res, err := f.advisor.Ask(context.Background(), "I need a tool", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	assert.True(t, res.Response.IsClarification())

	sess, err := f.sessions.Get(res.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.History, 1)
	assert.Equal(t, 1, sess.ClarificationCount)
	assert.Equal(t, "I need a tool", sess.LastQuery)
}

func TestAsk_RefinementUsesPreviousQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.advisor.Ask(ctx, "I need a tool", "s1")
	require.NoError(t, err)
	require.True(t, first.Response.IsClarification())

	second, err := f.advisor.Ask(ctx, "18V", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", second.SessionID)

	assert.Equal(t, "I need a tool 18V", f.ranker.lastQuery())
	require.Equal(t, turn.KindRecommendation, second.Response.Kind)
	assert.Equal(t, "Cordless Nutrunner", second.Response.Recommendation.ToolName)

	req := f.recommender.lastRequest()
	assert.Equal(t, "18V", req.Query)
	assert.Equal(t, filter.Set{Voltage: "18V"}, req.Filters)
}

func TestAsk_FiltersAccumulateAcrossClarifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.advisor.Ask(ctx, "48V gadget", "s1")
	require.NoError(t, err)

	res, err := f.advisor.Ask(ctx, "manual", "s1")
	require.NoError(t, err)
	require.True(t, res.Response.IsClarification())
	assert.Equal(t, "48V gadget manual", f.ranker.lastQuery())

	sess, err := f.sessions.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, filter.Set{Voltage: "48V", ApplicationType: filter.Manual}, sess.Filters)
	assert.Equal(t, 2, sess.ClarificationCount)
}

func TestAsk_SpecificToolStartsFreshSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.advisor.Ask(ctx, "48V gadget", "s1")
	require.NoError(t, err)

	res, err := f.advisor.Ask(ctx, "cordless", "s1")
	require.NoError(t, err)

	assert.Equal(t, "cordless", f.ranker.lastQuery())
	require.Equal(t, turn.KindRecommendation, res.Response.Kind)
	assert.Equal(t, "Cordless Nutrunner", res.Response.Recommendation.ToolName)
	assert.Equal(t, filter.Set{ApplicationType: filter.ManualPortable}, f.recommender.lastRequest().Filters)
}

func TestAsk_UnparseableRecommendation(t *testing.T) {
	f := newFixture(t)
	f.recommender.raw = "I am not able to answer that."

	res, err := f.advisor.Ask(context.Background(), "18V cordless nutrunner for 50Nm", "s1")
	require.NoError(t, err)

	require.Equal(t, turn.KindError, res.Response.Kind)
	assert.Equal(t, "No JSON found in response", res.Response.Error.Error)
	assert.Equal(t, "I am not able to answer that.", res.Response.Error.Raw)

	sess, err := f.sessions.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.History, 1)
	assert.Zero(t, sess.ClarificationCount)
}

func TestAsk_RetrievalFailure(t *testing.T) {
	f := newFixture(t)
	f.ranker.err = errors.New("embedding service unavailable")

	res, err := f.advisor.Ask(context.Background(), "18V cordless nutrunner", "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, f.ranker.err)
	assert.Equal(t, "s1", res.SessionID)

	_, err = f.sessions.Get("s1")
	assert.ErrorIs(t, err, session.ErrNotFound, "a failed first turn must not leave a session behind")
	assert.Zero(t, f.sessions.Stats().ActiveSessions)
	assert.Empty(t, f.recorder.events)
	assert.Equal(t, []string{StageRetrieval}, f.metrics.failures)
}

func TestAsk_FailureKeepsExistingConversation(t *testing.T) {
	f := newFixture(t)
	_, err := f.advisor.Ask(context.Background(), "nutrunner", "s1")
	require.NoError(t, err)

	f.ranker.err = errors.New("embedding service unavailable")
	_, err = f.advisor.Ask(context.Background(), "18V", "s1")
	require.ErrorIs(t, err, ErrUpstream)

	sess, err := f.sessions.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.History, 1)
	assert.Equal(t, "nutrunner", sess.LastQuery)
}

func TestAsk_GeneratedSessionDiscardedOnFailure(t *testing.T) {
	f := newFixture(t)
	f.ranker.err = errors.New("embedding service unavailable")

	res, err := f.advisor.Ask(context.Background(), "18V cordless nutrunner", "")
	require.Error(t, err)
	require.NotEmpty(t, res.SessionID)

	_, err = f.sessions.Get(res.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAsk_RecommenderTimeout(t *testing.T) {
	f := newFixture(t, WithUpstreamTimeout(10*time.Millisecond))
	f.recommender.block = true

	_, err := f.advisor.Ask(context.Background(), "18V cordless nutrunner for 50Nm", "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{StageRecommend}, f.metrics.failures)
}

func TestAsk_RecordsEvents(t *testing.T) {
	f := newFixture(t)

	_, err := f.advisor.Ask(context.Background(), "18V cordless nutrunner for 50Nm", "s1")
	require.NoError(t, err)

	require.Len(t, f.recorder.events, 1)
	ev := f.recorder.events[0]
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, turn.KindRecommendation, ev.Kind)
	assert.Equal(t, "Cordless Nutrunner", ev.ToolName)
	assert.Equal(t, 1, ev.ResultCount)
}

func TestAsk_ConcurrentTurnsOnOneSession(t *testing.T) {
	f := newFixture(t)
	const turns = 20

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.advisor.Ask(context.Background(), "I need a tool", "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := f.sessions.Get("shared")
	require.NoError(t, err)
	assert.Len(t, sess.History, turns)
	assert.Equal(t, turns, sess.ClarificationCount)
}

func TestNew_DefaultSessionStore(t *testing.T) {
	c := testCatalog()
	a := New(search.NewRetriever(c, &orderRanker{order: []int{0}}, nil), clarify.NewEngine(c), &fakeRecommender{})

	res, err := a.Ask(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.True(t, res.Response.IsClarification())
	assert.Equal(t, 1, a.Sessions().Stats().ActiveSessions)
}
