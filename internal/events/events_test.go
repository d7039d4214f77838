package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSPublisherSubjectAndPayload(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "campus.events.")

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	ev := New(RequestApproved, "req-1", "owner-1", at, map[string]string{"item_id": "item-1"})
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "campus.events.request.approved", conn.subjects[0])

	got, err := Decode(conn.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, RequestApproved, got.Type)
	assert.Equal(t, "req-1", got.Subject)
	assert.Equal(t, "owner-1", got.ActorID)
	assert.True(t, at.Equal(got.OccurredAt))
	assert.Equal(t, "item-1", got.Data["item_id"])
}

func TestNATSPublisherDefaultPrefix(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{}, "")
	assert.Equal(t, "sharehub.events.request.created", p.Subject(RequestCreated))
}

func TestNATSPublisherErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewNATSPublisher(conn, "")

	err := p.Publish(context.Background(), New(RequestCreated, "r", "u", time.Now(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, New(RequestCreated, "r", "u", time.Now(), nil)), context.Canceled)
}

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := New(RequestCreated, "r", "u", time.Now(), nil)
	b := New(RequestCreated, "r", "u", time.Now(), nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.OccurredAt.Location())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"subject":"x"}`))
	assert.Error(t, err)
}
