// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package respond

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/evidence-engine/internal/conversation"
	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts in init and never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// --- fakes ---

type stubSearch struct{ ids []string }

func (s stubSearch) Search(context.Context, string, int) types.Outcome[[]string] {
	return types.Ok(s.ids)
}

type stubMeta struct{}

func (stubMeta) FetchMetadata(_ context.Context, ids []string) types.Outcome[[]types.Document] {
	docs := make([]types.Document, len(ids))
	for i, id := range ids {
		docs[i] = types.Document{
			ID:      id,
			Title:   "Study " + id,
			Authors: "Silva A",
			Journal: "Pediatrics",
			PubDate: "2022",
			URL:     types.PubMedURL(id),
		}
	}
	return types.Ok(docs)
}

type stubAbstracts struct{ byID map[string]string }

func (s stubAbstracts) FetchAbstracts(_ context.Context, ids []string) types.Outcome[[]types.Abstract] {
	var out []types.Abstract
	for _, id := range ids {
		if text, ok := s.byID[id]; ok {
			out = append(out, types.Abstract{ID: id, Text: text})
		}
	}
	return types.Ok(out)
}

type staticEvidence struct {
	mu    sync.Mutex
	set   types.EvidenceSet
	calls int
}

func (s *staticEvidence) Assemble(context.Context, string, int) evidence.Result {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return evidence.Result{Evidence: s.set}
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []generate.Request
	reply    func(n int) (generate.Completion, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(_ context.Context, req generate.Request) (generate.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()
	if f.reply == nil {
		return generate.Completion{Text: fmt.Sprintf("answer %d", n), Model: "fake-model", TokensUsed: 42}, nil
	}
	return f.reply(n)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []types.Exchange
	err     error
}

func (r *memRecorder) Record(_ context.Context, ex types.Exchange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.entries = append(r.entries, ex)
	return int64(len(r.entries)), nil
}

type countObserver struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (c *countObserver) Exchange(_, _ string, success bool, _ int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.successes++
	} else {
		c.failures++
	}
}

func newOrchestrator(ev EvidenceSource, backend generate.Backend, rec Recorder) (*Orchestrator, *conversation.Store) {
	store := conversation.NewStore(types.ConversationConfig{Capacity: 100})
	o := New(Deps{Evidence: ev, Backend: backend, Store: store, Recorder: rec}, Options{})
	return o, store
}

// --- tests ---

func TestRespondEndToEnd(t *testing.T) {
	asm := evidence.NewAssembler(
		stubSearch{ids: []string{"10", "20"}},
		stubMeta{},
		stubAbstracts{byID: map[string]string{"10": "Amoxicillin 90 mg/kg/day."}},
		nil, nil,
	)
	backend := &fakeBackend{}
	rec := &memRecorder{}
	o, store := newOrchestrator(asm, backend, rec)

	resp, err := o.Respond(context.Background(), Request{Message: "Dose de amoxicilina?", Profile: "pediatria"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "answer 1", resp.Text)
	assert.True(t, strings.HasPrefix(resp.ConversationID, "conv_"))
	assert.Equal(t, prompt.Pediatrics, resp.Profile)
	assert.Equal(t, "fake-model", resp.Model)
	assert.Equal(t, 42, resp.TokensUsed)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "10", resp.Sources[0].PMID)
	assert.Equal(t, "2022", resp.Sources[0].Year)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Turns, 2)
	assert.Equal(t, types.SystemTurn(prompt.Pediatrics.Instruction()), req.Turns[0])
	user := req.Turns[1].Content
	assert.Contains(t, user, "ESTUDO 1:\nTítulo: Study 10")
	assert.Contains(t, user, "Amoxicillin 90 mg/kg/day.")
	assert.Contains(t, user, "ESTUDO 2:\nTítulo: Study 20")
	assert.Contains(t, user, "Abstract:\n"+types.PlaceholderAbstract)
	assert.Contains(t, user, "PERGUNTA DO USUÁRIO:\nDose de amoxicilina?")

	assert.Equal(t, []types.Turn{
		types.UserTurn("Dose de amoxicilina?"),
		types.AssistantTurn("answer 1"),
	}, store.Get(resp.ConversationID))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, types.ExchangeChat, rec.entries[0].Kind)
	assert.Equal(t, "pediatria", rec.entries[0].Profile)
	assert.Equal(t, []string{"10", "20"}, rec.entries[0].PMIDs)
	assert.True(t, rec.entries[0].Success)
}

func TestRespondNoEvidenceUsesSentinel(t *testing.T) {
	backend := &fakeBackend{}
	o, _ := newOrchestrator(&staticEvidence{}, backend, nil)

	resp, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, prompt.General, resp.Profile)
	assert.True(t, strings.HasPrefix(backend.requests[0].Turns[1].Content, evidence.NoEvidence))
}

func TestRespondHistoryWindow(t *testing.T) {
	backend := &fakeBackend{}
	o, store := newOrchestrator(&staticEvidence{}, backend, nil)
	for i := range 6 {
		store.Append("conv_x", types.UserTurn(fmt.Sprintf("q%d", i)), types.AssistantTurn(fmt.Sprintf("a%d", i)))
	}

	_, err := o.Respond(context.Background(), Request{Message: "next", ConversationID: "conv_x"})
	require.NoError(t, err)

	turns := backend.requests[0].Turns
	require.Len(t, turns, 1+conversation.DefaultHistoryWindow+1)
	assert.Equal(t, types.RoleSystem, turns[0].Role)
	assert.Equal(t, "a3", turns[1].Content)
	assert.Equal(t, "a5", turns[5].Content)
	assert.Len(t, store.Get("conv_x"), 14)
}

func TestRespondGenerationFailure(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (generate.Completion, error) {
		return generate.Completion{}, errors.New("HTTP 503")
	}}
	rec := &memRecorder{}
	obs := &countObserver{}
	store := conversation.NewStore(types.ConversationConfig{})
	store.Append("conv_keep", types.UserTurn("old"), types.AssistantTurn("old answer"))
	o := New(Deps{Evidence: &staticEvidence{}, Backend: backend, Store: store, Recorder: rec, Observer: obs}, Options{})

	resp, err := o.Respond(context.Background(), Request{Message: "q", ConversationID: "conv_keep"})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, FallbackMessage, resp.Text)
	assert.Equal(t, "conv_keep", resp.ConversationID)
	assert.EqualError(t, resp.Err, "HTTP 503")
	assert.Len(t, store.Get("conv_keep"), 2)

	require.Len(t, rec.entries, 1)
	assert.False(t, rec.entries[0].Success)
	assert.Equal(t, "HTTP 503", rec.entries[0].Error)
	assert.Equal(t, 1, obs.failures)
}

func TestRespondFailureWithoutIDCreatesNothing(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (generate.Completion, error) {
		return generate.Completion{}, generate.ErrEmptyCompletion
	}}
	o, store := newOrchestrator(&staticEvidence{}, backend, nil)

	resp, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, 0, store.Len())
}

func TestRespondEmptyMessage(t *testing.T) {
	ev := &staticEvidence{}
	backend := &fakeBackend{}
	rec := &memRecorder{}
	o, store := newOrchestrator(ev, backend, rec)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := o.Respond(context.Background(), Request{Message: msg, ConversationID: "conv_a"})
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Equal(t, 0, ev.calls)
	assert.Empty(t, backend.requests)
	assert.Empty(t, rec.entries)
	assert.Equal(t, 0, store.Len())
}

func TestRespondRecorderFailureIsNotFatal(t *testing.T) {
	o, _ := newOrchestrator(&staticEvidence{}, &fakeBackend{}, &memRecorder{err: errors.New("disk full")})
	resp, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestRespondTimeout(t *testing.T) {
	var deadline time.Time
	backend := &fakeBackend{}
	backend.reply = func(int) (generate.Completion, error) { return generate.Completion{Text: "ok"}, nil }
	ev := &deadlineEvidence{seen: &deadline}
	store := conversation.NewStore(types.ConversationConfig{})
	o := New(Deps{Evidence: ev, Backend: backend, Store: store}, Options{Timeout: 5 * time.Second})

	before := time.Now()
	_, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(5*time.Second), deadline, time.Second)
}

type deadlineEvidence struct{ seen *time.Time }

func (d *deadlineEvidence) Assemble(ctx context.Context, _ string, _ int) evidence.Result {
	*d.seen, _ = ctx.Deadline()
	return evidence.Result{Evidence: types.EvidenceSet{}}
}

// historyBackend records how many history turns each call saw, in call order.
type historyBackend struct {
	mu    sync.Mutex
	seen  []int
	delay time.Duration
}

func (h *historyBackend) Name() string { return "history" }

func (h *historyBackend) Generate(_ context.Context, req generate.Request) (generate.Completion, error) {
	h.mu.Lock()
	h.seen = append(h.seen, len(req.Turns)-2)
	h.mu.Unlock()
	time.Sleep(h.delay)
	return generate.Completion{Text: "ok", Model: "history"}, nil
}

func TestConcurrentRespondSameConversation(t *testing.T) {
	backend := &historyBackend{delay: 2 * time.Millisecond}
	o, store := newOrchestrator(&staticEvidence{}, backend, nil)

	const calls = 10
	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Respond(context.Background(), Request{Message: fmt.Sprintf("q%d", i), ConversationID: "conv_shared"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Each call must see every pair appended by the calls before it.
	want := make([]int, calls)
	for i := range want {
		want[i] = min(2*i, conversation.DefaultHistoryWindow)
	}
	assert.Equal(t, want, backend.seen)

	turns := store.Get("conv_shared")
	require.Len(t, turns, 2*calls)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, types.RoleUser, turns[i].Role)
		assert.Equal(t, types.RoleAssistant, turns[i+1].Role)
	}
}

// gateBackend blocks each call until release is closed.
type gateBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateBackend) Name() string { return "gate" }

func (g *gateBackend) Generate(ctx context.Context, _ generate.Request) (generate.Completion, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return generate.Completion{Text: "late answer", Model: "gate"}, nil
	case <-ctx.Done():
		return generate.Completion{}, ctx.Err()
	}
}

func TestForgetWaitsForInFlightRespond(t *testing.T) {
	backend := &gateBackend{entered: make(chan struct{}, 1), release: make(chan struct{})}
	o, store := newOrchestrator(&staticEvidence{}, backend, nil)
	store.Append("conv_busy", types.UserTurn("old"), types.AssistantTurn("old answer"))

	responded := make(chan Response, 1)
	go func() {
		resp, _ := o.Respond(context.Background(), Request{Message: "q", ConversationID: "conv_busy"})
		responded <- resp
	}()
	<-backend.entered

	forgot := make(chan bool, 1)
	go func() {
		ok, err := o.Forget(context.Background(), "conv_busy")
		assert.NoError(t, err)
		forgot <- ok
	}()

	select {
	case <-forgot:
		t.Fatal("Forget returned while Respond held the conversation")
	case <-time.After(20 * time.Millisecond):
	}

	close(backend.release)
	resp := <-responded
	assert.True(t, resp.Success)
	assert.True(t, <-forgot)
	assert.False(t, store.Has("conv_busy"))
}

func TestRespondGivesUpWaitingForBusyConversation(t *testing.T) {
	backend := &fakeBackend{}
	rec := &memRecorder{}
	store := conversation.NewStore(types.ConversationConfig{})
	o := New(Deps{Evidence: &staticEvidence{}, Backend: backend, Store: store, Recorder: rec}, Options{Timeout: 30 * time.Millisecond})

	hold, err := store.Lock(context.Background(), "conv_busy")
	require.NoError(t, err)
	defer hold()

	resp, err := o.Respond(context.Background(), Request{Message: "q", ConversationID: "conv_busy"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, FallbackMessage, resp.Text)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
	assert.Empty(t, backend.requests)
	require.Len(t, rec.entries, 1)
	assert.False(t, rec.entries[0].Success)
}

func TestRespondTimeoutCancelsGeneration(t *testing.T) {
	backend := &gateBackend{entered: make(chan struct{}, 1), release: make(chan struct{})}
	store := conversation.NewStore(types.ConversationConfig{})
	o := New(Deps{Evidence: &staticEvidence{}, Backend: backend, Store: store}, Options{Timeout: 30 * time.Millisecond})

	resp, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.Len())
}

func TestRespondZeroTemperature(t *testing.T) {
	backend := &fakeBackend{}
	zero := 0.0
	store := conversation.NewStore(types.ConversationConfig{})
	o := New(Deps{Evidence: &staticEvidence{}, Backend: backend, Store: store}, Options{Temperature: &zero})

	_, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, 0.0, backend.requests[0].Temperature)
}

func TestForget(t *testing.T) {
	o, store := newOrchestrator(&staticEvidence{}, &fakeBackend{}, nil)
	resp, err := o.Respond(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	require.True(t, store.Has(resp.ConversationID))

	ok, err := o.Forget(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, store.Has(resp.ConversationID))

	ok, err = o.Forget(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.False(t, ok)
}
