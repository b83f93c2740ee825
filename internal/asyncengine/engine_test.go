package asyncengine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/modelgate/internal/limiter"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/store"
	"github.com/modelgate/modelgate/internal/upstream"
)

type fakeDeferredClient struct {
	provider registry.Provider

	startProviderID string
	startImmediate  *upstream.TextResult
	startErr        error
	startCalls      int

	pollSequence []upstream.DeferredStatus
	pollCalls    int

	textResult upstream.TextResult
	textErr    error
}

func (f *fakeDeferredClient) Name() registry.Provider { return f.provider }

func (f *fakeDeferredClient) GenerateText(ctx context.Context, model, prompt string, opts upstream.Options) (upstream.TextResult, error) {
	if f.textErr != nil {
		return upstream.TextResult{}, f.textErr
	}
	return f.textResult, nil
}

func (f *fakeDeferredClient) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts upstream.Options) (upstream.StructuredResult, error) {
	return upstream.StructuredResult{}, nil
}

func (f *fakeDeferredClient) StartDeferred(ctx context.Context, model string, history []upstream.HistoryMessage, opts upstream.Options) (string, *upstream.TextResult, error) {
	f.startCalls++
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	return f.startProviderID, f.startImmediate, nil
}

func (f *fakeDeferredClient) PollDeferred(ctx context.Context, providerResponseID string) (upstream.DeferredStatus, error) {
	idx := f.pollCalls
	if idx >= len(f.pollSequence) {
		idx = len(f.pollSequence) - 1
	}
	f.pollCalls++
	return f.pollSequence[idx], nil
}

type fakeResolver struct {
	clients   map[registry.Provider]upstream.Client
	deferreds map[registry.Provider]upstream.DeferredClient
}

func (f fakeResolver) For(p registry.Provider) (upstream.Client, bool) {
	c, ok := f.clients[p]
	return c, ok
}

func (f fakeResolver) DeferredFor(p registry.Provider) (upstream.DeferredClient, bool) {
	c, ok := f.deferreds[p]
	return c, ok
}

func newTestEngine(t *testing.T, provider registry.Provider, client *fakeDeferredClient) (*Engine, *store.Store) {
	t.Helper()
	reg := registry.New(map[registry.Provider]registry.Binding{
		provider: {Provider: provider, APIKey: "test-key"},
	})
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	resolver := fakeResolver{
		clients:   map[registry.Provider]upstream.Client{provider: client},
		deferreds: map[registry.Provider]upstream.DeferredClient{},
	}
	eng := New(reg, resolver, st, limiter.New(), zerolog.Nop())
	return eng, st
}

func withDeferred(eng *Engine, provider registry.Provider, client upstream.DeferredClient) {
	r := eng.Upstreams.(fakeResolver)
	r.deferreds[provider] = client
	eng.Upstreams = r
}

func TestRunTurnImmediateCompletion(t *testing.T) {
	client := &fakeDeferredClient{
		provider:        registry.OpenAI,
		startProviderID: "resp_1",
		startImmediate:  &upstream.TextResult{Text: "hello there"},
	}
	eng, _ := newTestEngine(t, registry.OpenAI, client)
	withDeferred(eng, registry.OpenAI, client)

	result, err := eng.RunTurn(context.Background(), nil, "hi", "openai:gpt-4.1", Options{})
	require.NoError(t, err)
	require.Equal(t, TurnCompleted, result.Status)
	require.Equal(t, "hello there", result.Text)
	require.Equal(t, 1, client.startCalls)
}

func TestRunTurnDedupReturnsSameRequest(t *testing.T) {
	client := &fakeDeferredClient{
		provider:        registry.OpenAI,
		startProviderID: "resp_1",
		startImmediate:  &upstream.TextResult{Text: "hello there"},
	}
	eng, _ := newTestEngine(t, registry.OpenAI, client)
	withDeferred(eng, registry.OpenAI, client)

	first, err := eng.RunTurn(context.Background(), nil, "hi", "openai:gpt-4.1", Options{})
	require.NoError(t, err)

	req, err := eng.Store.GetRequest(context.Background(), first.RequestID)
	require.NoError(t, err)
	require.NotNil(t, req)

	second, err := eng.RunTurn(context.Background(), &req.ConversationID, "hi", "openai:gpt-4.1", Options{})
	require.NoError(t, err)
	require.Equal(t, first.RequestID, second.RequestID)
	require.Equal(t, first.Text, second.Text)
	require.Equal(t, 1, client.startCalls, "second call must hit the dedup cache, not start a new upstream job")
}

func TestRunTurnPollsUntilComplete(t *testing.T) {
	client := &fakeDeferredClient{
		provider:        registry.OpenAI,
		startProviderID: "resp_1",
		startImmediate:  nil,
		pollSequence: []upstream.DeferredStatus{
			{Status: "in_progress"},
			{Status: "completed", Result: &upstream.TextResult{Text: "final answer"}, Usage: &upstream.Usage{TotalTokens: 42}},
		},
	}
	eng, _ := newTestEngine(t, registry.OpenAI, client)
	withDeferred(eng, registry.OpenAI, client)

	result, err := eng.RunTurn(context.Background(), nil, "hi", "openai:gpt-4.1", Options{OverallTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.Equal(t, TurnCompleted, result.Status)
	require.Equal(t, "final answer", result.Text)
	require.NotNil(t, result.Usage)
	require.Equal(t, 42, result.Usage.TotalTokens)
}

func TestRunTurnReturnsWaitingWhenBudgetElapses(t *testing.T) {
	client := &fakeDeferredClient{
		provider:        registry.OpenAI,
		startProviderID: "resp_1",
		pollSequence: []upstream.DeferredStatus{
			{Status: "in_progress"},
			{Status: "in_progress"},
			{Status: "in_progress"},
		},
	}
	eng, _ := newTestEngine(t, registry.OpenAI, client)
	withDeferred(eng, registry.OpenAI, client)

	result, err := eng.RunTurn(context.Background(), nil, "hi", "openai:gpt-4.1", Options{OverallTimeout: 1500 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, TurnWaiting, result.Status)
	require.NotZero(t, result.RequestID)

	client.pollSequence = []upstream.DeferredStatus{
		{Status: "completed", Result: &upstream.TextResult{Text: "resumed answer"}},
	}
	client.pollCalls = 0
	final, err := eng.CheckOrWait(context.Background(), result.RequestID, 2000)
	require.NoError(t, err)
	require.Equal(t, TurnCompleted, final.Status)
	require.Equal(t, "resumed answer", final.Text)
}

func TestRunTurnDegradesToSyncForNonDeferredProvider(t *testing.T) {
	client := &fakeDeferredClient{
		provider:   registry.Anthropic,
		textResult: upstream.TextResult{Text: "plain sync answer"},
	}
	eng, _ := newTestEngine(t, registry.Anthropic, client)
	// deliberately never call withDeferred: anthropic has no deferred client.

	result, err := eng.RunTurn(context.Background(), nil, "hi", "anthropic:claude-sonnet-4", Options{})
	require.NoError(t, err)
	require.Equal(t, TurnCompleted, result.Status)
	require.Equal(t, "plain sync answer", result.Text)
}

func TestCheckOrWaitOnCompletedRequestIsIdempotent(t *testing.T) {
	client := &fakeDeferredClient{
		provider:        registry.OpenAI,
		startProviderID: "resp_1",
		startImmediate:  &upstream.TextResult{Text: "done"},
	}
	eng, _ := newTestEngine(t, registry.OpenAI, client)
	withDeferred(eng, registry.OpenAI, client)

	first, err := eng.RunTurn(context.Background(), nil, "hi", "openai:gpt-4.1", Options{})
	require.NoError(t, err)

	second, err := eng.CheckOrWait(context.Background(), first.RequestID, 1000)
	require.NoError(t, err)
	require.Equal(t, TurnCompleted, second.Status)
	require.Equal(t, first.Text, second.Text)
}
