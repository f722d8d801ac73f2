package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{AppName: "GeminiCLI", UserID: "user-1", SessionID: "session-1"}
}

func TestInMemoryService_Create(t *testing.T) {
	store := NewInMemoryService()
	ctx := context.Background()

	sess, err := store.Create(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, testKey(), sess.Key)
	assert.Equal(t, 0, sess.Len())

	_, err = store.Create(ctx, testKey())
	assert.True(t, errors.Is(err, ErrSessionExists))
}

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name      string
		key       Key
		shouldErr bool
	}{
		{"valid key", testKey(), false},
		{"empty app", Key{UserID: "u", SessionID: "s"}, true},
		{"blank user", Key{AppName: "a", UserID: "  ", SessionID: "s"}, true},
		{"empty session", Key{AppName: "a", UserID: "u"}, true},
		{"slash", Key{AppName: "a", UserID: "u/x", SessionID: "s"}, true},
		{"null byte", Key{AppName: "a", UserID: "u", SessionID: "s\x00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInMemoryService_Get(t *testing.T) {
	store := NewInMemoryService()
	ctx := context.Background()

	_, err := store.Get(ctx, testKey())
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	created, err := store.Create(ctx, testKey())
	require.NoError(t, err)

	got, err := store.Get(ctx, testKey())
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestInMemoryService_AppendEvent(t *testing.T) {
	store := NewInMemoryService()
	ctx := context.Background()
	sess, err := store.Create(ctx, testKey())
	require.NoError(t, err)

	first := NewEvent("inv-1", AuthorUser, NewUserContent("hello"))
	partial := NewEvent("inv-1", "GeminiAgent", &Content{Role: RoleModel, Parts: []Part{{Text: "Hi"}}})
	partial.Partial = true
	final := NewEvent("inv-1", "GeminiAgent", &Content{Role: RoleModel, Parts: []Part{{Text: "Hi there"}}})

	require.NoError(t, store.AppendEvent(ctx, sess, first))
	require.NoError(t, store.AppendEvent(ctx, sess, partial))
	require.NoError(t, store.AppendEvent(ctx, sess, final))

	events := sess.Events()
	require.Len(t, events, 2, "partial events are not recorded")
	assert.Equal(t, "hello", events[0].Text())
	assert.Equal(t, "Hi there", events[1].Text())
	assert.Equal(t, final.Timestamp, sess.UpdatedAt())

	assert.Error(t, store.AppendEvent(ctx, nil, first))
	assert.Error(t, store.AppendEvent(ctx, sess, nil))
}

func TestSession_EventsIsSnapshot(t *testing.T) {
	store := NewInMemoryService()
	ctx := context.Background()
	sess, err := store.Create(ctx, testKey())
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(ctx, sess, NewEvent("inv", AuthorUser, NewUserContent("a"))))

	snapshot := sess.Events()
	require.NoError(t, store.AppendEvent(ctx, sess, NewEvent("inv", AuthorUser, NewUserContent("b"))))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, sess.Len())
}

func TestInMemoryService_DeleteAndList(t *testing.T) {
	store := NewInMemoryService()
	ctx := context.Background()

	for _, id := range []string{"s2", "s1"} {
		_, err := store.Create(ctx, Key{AppName: "app", UserID: "u", SessionID: id})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, Key{AppName: "app", UserID: "other", SessionID: "s3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2"}, store.List(ctx, "app", "u"))

	require.NoError(t, store.Delete(ctx, Key{AppName: "app", UserID: "u", SessionID: "s1"}))
	assert.Equal(t, []string{"s2"}, store.List(ctx, "app", "u"))
	assert.NoError(t, store.Delete(ctx, Key{AppName: "app", UserID: "u", SessionID: "missing"}))
}

func TestEvent_Accessors(t *testing.T) {
	ev := NewEvent("inv", "GeminiAgent", &Content{
		Role: RoleModel,
		Parts: []Part{
			{Text: "Let me check. "},
			{FunctionCall: &FunctionCall{ID: "c1", Name: "getCurrentTime"}},
			{Text: "One moment."},
		},
	})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "Let me check. One moment.", ev.Text())
	require.Len(t, ev.FunctionCalls(), 1)
	assert.Equal(t, "getCurrentTime", ev.FunctionCalls()[0].Name)
	assert.Empty(t, ev.FunctionResponses())

	var nilEvent *Event
	assert.Equal(t, "", nilEvent.Text())
	assert.Nil(t, nilEvent.FunctionCalls())
}
