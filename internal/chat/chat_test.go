// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/ratelimit"
	"github.com/emberworks/emberlive/internal/store/memory"
)

type denyModeration struct{}

func (denyModeration) CheckMessage(ctx context.Context, streamID, userID, content string) (rails.Verdict, error) {
	return rails.Verdict{Allowed: false, Reason: "test policy"}, nil
}

type chatFixture struct {
	svc   *Service
	store *memory.Store
	now   time.Time
}

func newChatFixture(t *testing.T, moderation rails.ModerationService) *chatFixture {
	t.Helper()
	st := memory.New()
	counters := ratelimit.NewMemoryCounterStore()
	limiter := ratelimit.New(counters, ratelimit.Config{
		MaxMessages: 5,
		Window:      10 * time.Second,
	})
	f := &chatFixture{
		svc:   New(st, limiter, moderation, Config{}),
		store: st,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.svc.SetClock(clock)
	limiter.SetClock(clock)
	counters.Now = clock

	require.NoError(t, st.UpsertStream(context.Background(), &models.Stream{
		ID:           "stream-1",
		HostID:       "host",
		Live:         true,
		ChatEnabled:  true,
		GiftsEnabled: true,
	}))
	return f
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	msg, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1",
		UserID:   "alice",
		Content:  "  hello chat  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello chat", msg.Content)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.False(t, msg.Deleted)

	stored, err := f.store.ChatMessage(ctx, "stream-1", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Content, stored.Content)

	agg, err := f.store.StreamAggregate(ctx, "stream-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.TotalMessages)

	// The commit queued exactly one outbox row for fanout.
	rows, err := f.store.UnpublishedOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "stream-1", rows[0].StreamID)
	assert.Equal(t, "message", rows[0].Kind)
}

func TestSendMessageAdmissionChecks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, f *chatFixture)
		params  SendParams
		wantErr error
	}{
		{
			name:    "unknown stream",
			params:  SendParams{StreamID: "ghost", UserID: "alice", Content: "hi"},
			wantErr: ErrStreamNotFound,
		},
		{
			name: "stream not live",
			setup: func(t *testing.T, f *chatFixture) {
				require.NoError(t, f.store.UpsertStream(ctx, &models.Stream{
					ID: "stream-1", HostID: "host", Live: false, ChatEnabled: true,
				}))
			},
			params:  SendParams{StreamID: "stream-1", UserID: "alice", Content: "hi"},
			wantErr: ErrStreamNotLive,
		},
		{
			name: "chat disabled",
			setup: func(t *testing.T, f *chatFixture) {
				require.NoError(t, f.store.UpsertStream(ctx, &models.Stream{
					ID: "stream-1", HostID: "host", Live: true, ChatEnabled: false,
				}))
			},
			params:  SendParams{StreamID: "stream-1", UserID: "alice", Content: "hi"},
			wantErr: ErrChatDisabled,
		},
		{
			name: "blocked user",
			setup: func(t *testing.T, f *chatFixture) {
				require.NoError(t, f.store.SetBlocked(ctx, "stream-1", "alice", true))
			},
			params:  SendParams{StreamID: "stream-1", UserID: "alice", Content: "hi"},
			wantErr: ErrUserBlocked,
		},
		{
			name:    "empty after sanitization",
			params:  SendParams{StreamID: "stream-1", UserID: "alice", Content: " \t\n "},
			wantErr: ErrEmptyMessage,
		},
		{
			name:    "system type not accepted from users",
			params:  SendParams{StreamID: "stream-1", UserID: "alice", Content: "hi", Type: models.MessageSystem},
			wantErr: ErrInvalidType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.svc.SendMessage(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)

			rows, err := f.store.UnpublishedOutboxEvents(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, rows, "rejected send must not queue fanout")
		})
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	for i := 0; i < 5; i++ {
		_, err := f.svc.SendMessage(ctx, SendParams{
			StreamID: "stream-1", UserID: "alice", Content: "spam",
		})
		require.NoError(t, err, "message %d", i+1)
	}

	_, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1", UserID: "alice", Content: "spam",
	})
	assert.ErrorIs(t, err, ErrRateLimited)

	// Another user is unaffected.
	_, err = f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1", UserID: "bob", Content: "hi",
	})
	assert.NoError(t, err)
}

func TestSendMessageModerationRejection(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, denyModeration{})

	_, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1", UserID: "alice", Content: "anything",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSendMessageSanitizesMarkup(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	msg, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1",
		UserID:   "alice",
		Content:  "<script>alert(1)</script>\x00\x1b[31m",
	})
	require.NoError(t, err)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;[31m", msg.Content)
	assert.NotContains(t, msg.Content, "<")
	assert.NotContains(t, msg.Content, "\x00")
	assert.NotContains(t, msg.Content, "\x1b")
}

func TestSendEmoteWithMetadata(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	msg, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1",
		UserID:   "alice",
		Content:  ":wave:",
		Type:     models.MessageEmote,
		Metadata: &models.EmoteMetadata{EmoteID: "wave"},
	})
	require.NoError(t, err)

	md, err := msg.DecodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, &models.EmoteMetadata{EmoteID: "wave"}, md)
}

func TestDeleteMessageAuthorization(t *testing.T) {
	ctx := context.Background()

	send := func(t *testing.T, f *chatFixture) *models.ChatMessage {
		t.Helper()
		msg, err := f.svc.SendMessage(ctx, SendParams{
			StreamID: "stream-1", UserID: "alice", Content: "delete me",
		})
		require.NoError(t, err)
		return msg
	}

	tests := []struct {
		name    string
		actor   string
		setup   func(t *testing.T, f *chatFixture)
		wantErr error
	}{
		{name: "author may delete", actor: "alice"},
		{name: "host may delete", actor: "host"},
		{
			name:  "moderator may delete",
			actor: "mod",
			setup: func(t *testing.T, f *chatFixture) {
				require.NoError(t, f.store.SetModerator(ctx, "stream-1", "mod", true))
			},
		},
		{
			name:  "admin may delete",
			actor: "root",
			setup: func(t *testing.T, f *chatFixture) {
				require.NoError(t, f.store.SetAdmin(ctx, "root", true))
			},
		},
		{name: "stranger is forbidden", actor: "mallory", wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, nil)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			msg := send(t, f)

			err := f.svc.DeleteMessage(ctx, "stream-1", msg.ID, tt.actor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, err := f.store.ChatMessage(ctx, "stream-1", msg.ID)
				require.NoError(t, err)
				assert.False(t, stored.Deleted, "forbidden delete must not flag the message")
				return
			}
			require.NoError(t, err)

			stored, err := f.store.ChatMessage(ctx, "stream-1", msg.ID)
			require.NoError(t, err)
			assert.True(t, stored.Deleted)
			require.NotNil(t, stored.DeletedAt)

			// One message row + one retraction row in the outbox.
			rows, err := f.store.UnpublishedOutboxEvents(ctx, 10)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "retraction", rows[1].Kind)
		})
	}
}

func TestDeleteMessageEdgeCases(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	assert.ErrorIs(t, f.svc.DeleteMessage(ctx, "stream-1", "ghost", "alice"), ErrMessageNotFound)

	msg, err := f.svc.SendMessage(ctx, SendParams{
		StreamID: "stream-1", UserID: "alice", Content: "hi",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteMessage(ctx, "stream-1", msg.ID, "alice"))
	// Deleting an already-deleted message acks without a second retraction.
	require.NoError(t, f.svc.DeleteMessage(ctx, "stream-1", msg.ID, "alice"))

	rows, err := f.store.UnpublishedOutboxEvents(ctx, 10)
	require.NoError(t, err)
	var retractions int
	for _, r := range rows {
		if r.Kind == "retraction" {
			retractions++
		}
	}
	assert.Equal(t, 1, retractions)
}

func TestCanSubscribe(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	require.NoError(t, f.store.UpsertStream(ctx, &models.Stream{
		ID:     "stream-offline",
		HostID: "host",
		Live:   false,
	}))

	assert.NoError(t, f.svc.CanSubscribe(ctx, "stream-1"))
	assert.ErrorIs(t, f.svc.CanSubscribe(ctx, "stream-ghost"), ErrStreamNotFound)
	assert.ErrorIs(t, f.svc.CanSubscribe(ctx, "stream-offline"), ErrStreamNotLive)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Second)
		msg, err := f.svc.SendMessage(ctx, SendParams{
			StreamID: "stream-1", UserID: "alice", Content: "hello",
		})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Deleted messages drop out of the transcript.
	require.NoError(t, f.svc.DeleteMessage(ctx, "stream-1", ids[1], "alice"))

	history, err := f.svc.History(ctx, "stream-1", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID, "newest first")
	assert.Equal(t, ids[0], history[1].ID)

	_, err = f.svc.History(ctx, "ghost", 10, time.Time{})
	assert.ErrorIs(t, err, ErrStreamNotFound)
}
