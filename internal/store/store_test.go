package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	title := "support thread"
	conv, err := s.CreateConversation(ctx, &title, nil)
	require.NoError(t, err)
	require.NotZero(t, conv.ID)
	require.Equal(t, &title, conv.Title)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, got.ID)
}

func TestGetConversationMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetConversation(context.Background(), 9999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAppendMessageAssignsMonotonicSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)

	m1, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)
	require.Equal(t, 1, m1.Seq)

	m2, err := s.AppendMessage(ctx, conv.ID, "assistant", "hello", nil)
	require.NoError(t, err)
	require.Equal(t, 2, m2.Seq)

	updated, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, updated.UpdatedAt.Equal(updated.UpdatedAt))
}

func TestAppendMessageTouchesConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	before := conv.UpdatedAt

	_, err = s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)

	after, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.False(t, after.UpdatedAt.Before(before))
}

func TestRecentMessagesReturnsAscendingSeqWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(ctx, conv.ID, "user", "msg", nil)
		require.NoError(t, err)
	}

	recent, err := s.RecentMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, 3, recent[0].Seq)
	require.Equal(t, 4, recent[1].Seq)
	require.Equal(t, 5, recent[2].Seq)
}

func TestUpsertRequestDedupesByInputHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)

	req1, created1, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)
	require.True(t, created1)

	req2, created2, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, req1.ID, req2.ID)
}

func TestUpsertRequestDifferentHashCreatesNewRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)

	req1, _, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)
	req2, created, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-b")
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, req1.ID, req2.ID)
}

func TestRequestStatusMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)
	req, _, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)

	require.NoError(t, s.MarkStarted(ctx, req.ID, nil))
	require.NoError(t, s.SaveCompletion(ctx, req.ID, "done", []byte(`{}`), []byte(`{}`)))

	// once terminal, a further transition to in_progress must be rejected.
	err = s.MarkStarted(ctx, req.ID, nil)
	require.Error(t, err)

	final, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, final.Status)
	require.Equal(t, 1, final.Tries)
}

func TestMarkStartedIncrementsTries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)
	req, _, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)

	require.NoError(t, s.MarkStarted(ctx, req.ID, nil))
	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Tries)
	require.NotNil(t, got.StartedAt)
}

func TestSaveFailureRecordsErrorJSON(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	conv, err := s.CreateConversation(ctx, nil, nil)
	require.NoError(t, err)
	msg, err := s.AppendMessage(ctx, conv.ID, "user", "hi", nil)
	require.NoError(t, err)
	req, _, err := s.UpsertRequest(ctx, conv.ID, msg.ID, "openai:gpt-5", `{}`, "hash-a")
	require.NoError(t, err)

	require.NoError(t, s.MarkStarted(ctx, req.ID, nil))
	require.NoError(t, s.SaveFailure(ctx, req.ID, []byte(`{"kind":"upstream_error"}`)))

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.ErrorJSON)
}
