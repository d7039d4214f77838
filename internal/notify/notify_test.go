package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/campusshare/sharehub/internal/db"
	"github.com/campusshare/sharehub/internal/model"
	"github.com/campusshare/sharehub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu       sync.Mutex
	users    []string
	payloads []string
	err      error
}

func (p *recordingPusher) Push(_ context.Context, userID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.payloads = append(p.payloads, string(payload))
	return p.err
}

func newUser(t *testing.T, d *Dispatcher, email string) string {
	t.Helper()
	u, err := store.CreateUser(context.Background(), d.db, email, "h", model.RoleUser, store.Profile{})
	require.NoError(t, err)
	return u.ID
}

func TestNotifyAndRecent(t *testing.T) {
	pusher := &recordingPusher{}
	d := NewDispatcher(db.NewTestDB(t), pusher)
	ctx := context.Background()
	u := newUser(t, d, "u@cit.edu")

	for i := 1; i <= 12; i++ {
		require.NoError(t, d.Notify(ctx, u, fmt.Sprintf("message %d", i), model.NotifyRequestCreated))
	}

	feed, err := d.Recent(ctx, u, 0)
	require.NoError(t, err)
	require.Len(t, feed.Notifications, DefaultLimit)
	assert.Equal(t, 12, feed.Unread)
	assert.Equal(t, "message 12", feed.Notifications[0].Message)
	assert.Equal(t, "message 3", feed.Notifications[DefaultLimit-1].Message)

	feed, err = d.Recent(ctx, u, 3)
	require.NoError(t, err)
	assert.Len(t, feed.Notifications, 3)

	feed, err = d.Recent(ctx, u, 1000)
	require.NoError(t, err)
	assert.Len(t, feed.Notifications, 12)

	require.Len(t, pusher.users, 12)
	assert.Equal(t, u, pusher.users[0])
	assert.Contains(t, pusher.payloads[0], `"type":"notification"`)
	assert.Contains(t, pusher.payloads[0], `"message":"message 1"`)
}

func TestNotifyRequiresRecipientAndMessage(t *testing.T) {
	d := NewDispatcher(db.NewTestDB(t), nil)
	ctx := context.Background()

	assert.Error(t, d.Notify(ctx, "", "hello", model.NotifyRequestCreated))
	assert.Error(t, d.Notify(ctx, "someone", "", model.NotifyRequestCreated))
}

func TestNotifySurvivesPushFailure(t *testing.T) {
	pusher := &recordingPusher{err: errors.New("redis down")}
	d := NewDispatcher(db.NewTestDB(t), pusher)
	ctx := context.Background()
	u := newUser(t, d, "u@cit.edu")

	require.NoError(t, d.Notify(ctx, u, "still stored", model.NotifyRequestApproved))

	feed, err := d.Recent(ctx, u, 10)
	require.NoError(t, err)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, "still stored", feed.Notifications[0].Message)
}

func TestMarkAllRead(t *testing.T) {
	pusher := &recordingPusher{}
	d := NewDispatcher(db.NewTestDB(t), pusher)
	ctx := context.Background()
	u := newUser(t, d, "u@cit.edu")
	other := newUser(t, d, "o@cit.edu")

	require.NoError(t, d.Notify(ctx, u, "a", model.NotifyRequestCreated))
	require.NoError(t, d.Notify(ctx, u, "b", model.NotifyRequestCreated))
	require.NoError(t, d.Notify(ctx, other, "c", model.NotifyRequestCreated))

	n, err := d.MarkAllRead(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	feed, _ := d.Recent(ctx, u, 10)
	assert.Equal(t, 0, feed.Unread)
	for _, notification := range feed.Notifications {
		assert.True(t, notification.Read)
	}

	otherFeed, _ := d.Recent(ctx, other, 10)
	assert.Equal(t, 1, otherFeed.Unread)

	// Nothing left to mark.
	n, err = d.MarkAllRead(ctx, u)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Contains(t, pusher.payloads[len(pusher.payloads)-1], `"notifications_read"`)
}

func TestMarkRead(t *testing.T) {
	d := NewDispatcher(db.NewTestDB(t), nil)
	ctx := context.Background()
	u := newUser(t, d, "u@cit.edu")
	other := newUser(t, d, "o@cit.edu")

	require.NoError(t, d.Notify(ctx, u, "a", model.NotifyRequestCreated))
	feed, _ := d.Recent(ctx, u, 10)
	id := feed.Notifications[0].ID

	ok, err := d.MarkRead(ctx, other, id)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.MarkRead(ctx, u, id)
	require.NoError(t, err)
	assert.True(t, ok)

	feed, _ = d.Recent(ctx, u, 10)
	assert.Equal(t, 0, feed.Unread)
}
