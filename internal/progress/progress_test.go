package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/pkg/models"
)

func TestChannel_EmitAndDrain(t *testing.T) {
	ch := NewChannel(4)

	ok := ch.Emit(models.ProgressEvent{RunID: "r1", Step: "validating_config", Status: "started"})
	require.True(t, ok)

	select {
	case ev := <-ch.Events():
		assert.Equal(t, "validating_config", ev.Step)
	case <-time.After(time.Second):
		t.Fatal("expected event to be delivered")
	}
}

func TestChannel_CloseStopsDelivery(t *testing.T) {
	ch := NewChannel(1)
	ch.Close()

	assert.True(t, ch.Closed())
	assert.False(t, ch.Emit(models.ProgressEvent{RunID: "r1", Step: "x"}))
}

func TestChannel_DropsWhenConsumerIsSlow(t *testing.T) {
	ch := NewChannel(1)
	// fill the buffer, nobody drains it
	require.True(t, ch.Emit(models.ProgressEvent{RunID: "r1", Step: "first"}))

	start := time.Now()
	ok := ch.Emit(models.ProgressEvent{RunID: "r1", Step: "second"})
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Equal(t, 1, ch.Dropped())
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}
