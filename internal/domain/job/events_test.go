package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

func TestEventType_Terminal(t *testing.T) {
	assert.False(t, EventProgress.Terminal())
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventFailed.Terminal())
}

func TestEventBus_PublishReachesOnlyMatchingJob(t *testing.T) {
	bus := NewEventBus()

	chA, cancelA := bus.Subscribe("job-a")
	defer cancelA()
	chB, cancelB := bus.Subscribe("job-b")
	defer cancelB()

	bus.Publish(Event{JobID: "job-a", Type: EventProgress, Progress: 25})

	select {
	case ev := <-chA:
		assert.Equal(t, "job-a", ev.JobID)
		assert.Equal(t, 25, ev.Progress)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected event on job-a subscription")
	}

	select {
	case ev := <-chB:
		t.Fatalf("unexpected event on job-b subscription: %+v", ev)
	default:
	}
}

func TestEventBus_MultipleSubscribersAllReceive(t *testing.T) {
	bus := NewEventBus()

	ch1, cancel1 := bus.Subscribe("job-1")
	defer cancel1()
	ch2, cancel2 := bus.Subscribe("job-1")
	defer cancel2()

	bus.Publish(Event{
		JobID: "job-1",
		Type:  EventCompleted,
		Result: &model.GenerationResult{
			Text:  "done",
			Usage: model.Usage{TotalTokens: 12},
		},
	})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			require.NotNil(t, ev.Result)
			assert.Equal(t, "done", ev.Result.Text)
		case <-time.After(200 * time.Millisecond):
			t.Fatal("expected event on subscription")
		}
	}
}

func TestEventBus_CancelClosesChannelAndIsIdempotent(t *testing.T) {
	bus := NewEventBus()

	ch, cancel := bus.Subscribe("job-1")
	require.Equal(t, 1, bus.SubscriberCount("job-1"))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
	assert.Equal(t, 0, bus.SubscriberCount("job-1"))

	// Publishing after teardown must not panic or block.
	bus.Publish(Event{JobID: "job-1", Type: EventProgress})
}

func TestEventBus_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	bus := NewEventBus()

	_, cancel := bus.Subscribe("job-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventChanBuffer*3; i++ {
			bus.Publish(Event{JobID: "job-1", Type: EventProgress, Progress: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow consumer")
	}
}

func TestEventBus_CloseTearsDownAllSubscriptions(t *testing.T) {
	bus := NewEventBus()

	ch1, _ := bus.Subscribe("job-1")
	ch2, _ := bus.Subscribe("job-2")

	bus.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok, "channels should close on bus shutdown")
	}

	ch3, cancel3 := bus.Subscribe("job-3")
	defer cancel3()
	_, ok := <-ch3
	assert.False(t, ok, "subscriptions after close get a closed channel")
}
