package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndUpdate(t *testing.T) {
	tr := NewTracker()
	defer tr.Close()

	total := 10.0
	token := tr.Start(&total)
	assert.NotEmpty(t, token)
	assert.False(t, tr.IsCancelled(token))

	ctx := context.Background()
	tr.Update(ctx, token, 5)
}

func TestCancelAndComplete(t *testing.T) {
	tr := NewTracker()
	defer tr.Close()

	token := tr.Start(nil)
	tr.Cancel(token)
	assert.True(t, tr.IsCancelled(token))

	tr.Complete(token)
	assert.True(t, tr.IsCancelled(token), "completed token should read as cancelled")
}

func TestIsCancelledUnknownTokenDefaultsTrue(t *testing.T) {
	tr := NewTracker()
	defer tr.Close()

	assert.True(t, tr.IsCancelled("never-started"))
}

func TestUpdatePublishesNotification(t *testing.T) {
	tr := NewTracker()
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := tr.Subscribe(ctx)
	require.NoError(t, err)

	token := tr.Start(nil)
	tr.Update(ctx, token, 1)

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg.Payload), "notifications/progress")
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("expected a progress notification")
	}
}
