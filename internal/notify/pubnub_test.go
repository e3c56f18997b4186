package notify

import (
	"context"
	"errors"
	"testing"

	"eventhub/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	channels []string
	messages []any
	err      error
}

func (r *recorder) publish(channel string, message any) error {
	r.channels = append(r.channels, channel)
	r.messages = append(r.messages, message)
	return r.err
}

func TestPubNub_Notify(t *testing.T) {
	rec := &recorder{}
	n := newPubNub(rec.publish)

	payload := map[string]any{"type": "checkout_completed", "checkout_id": "c-1"}
	require.NoError(t, n.Notify(context.Background(), "user-1", payload))

	assert.Equal(t, []string{"user-1"}, rec.channels)
	assert.Equal(t, payload, rec.messages[0])
}

func TestPubNub_NotifyOpensBreaker(t *testing.T) {
	rec := &recorder{err: errors.New("connection refused")}
	n := newPubNub(rec.publish)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		assert.Error(t, n.Notify(ctx, "user-1", map[string]any{"type": "x"}))
	}
	assert.Equal(t, utils.StateOpen, n.breaker.State())

	err := n.Notify(ctx, "user-1", map[string]any{"type": "x"})
	assert.ErrorIs(t, err, utils.ErrCircuitOpen)
	assert.Len(t, rec.channels, 20)
}

func TestPubNub_NotifyCancelledContext(t *testing.T) {
	rec := &recorder{}
	n := newPubNub(rec.publish)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "user-1", nil), context.Canceled)
	assert.Empty(t, rec.channels)
}

func TestNewPubNub_RequiresKeys(t *testing.T) {
	_, err := NewPubNub(Config{UserID: "server"})
	assert.Error(t, err)
}

func TestLog_Notify(t *testing.T) {
	assert.NoError(t, Log{}.Notify(context.Background(), "organizer-1", map[string]any{"type": "payout_approved"}))
}
