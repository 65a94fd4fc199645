package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type runEvent struct {
	RunID string
	Node  string
	Kind  string
}

func TestPublishConsume(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[runEvent](config)

	ctx := context.Background()
	event := runEvent{RunID: "run-1", Node: "review", Kind: "transition"}

	err := queue.Publish(ctx, &event)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	delivered := message.T()
	assert.Equal(t, event.RunID, delivered.RunID)
	assert.Equal(t, event.Node, delivered.Node)
	assert.Equal(t, event.Kind, delivered.Kind)

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack(), "a message can only be settled once")
}

func TestNackRetriesThenDeadLetters(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[runEvent](config)

	ctx := context.Background()
	event := runEvent{RunID: "run-1", Node: "work", Kind: "mutation"}
	assert.NoError(t, queue.Publish(ctx, &event))

	// the original delivery plus MaxRetries redeliveries
	for attempt := 0; attempt < config.MaxRetries+1; attempt++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)
		assert.NoError(t, message.Nack(nil))
		time.Sleep(20 * time.Millisecond)
	}

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize(), "exhausted messages land in the dead letter queue")
}

func TestConcurrentProducersAndConsumers(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[runEvent](config)

	ctx := context.Background()
	workers := 10
	eventsPerWorker := 10

	var wg sync.WaitGroup
	wg.Add(workers * 2)

	var consumed int
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerWorker; j++ {
				message, err := queue.Consume(ctx)
				if err != nil {
					t.Errorf("consume: %v", err)
					continue
				}
				assert.NoError(t, message.Ack())
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < eventsPerWorker; j++ {
				event := runEvent{
					RunID: fmt.Sprintf("run-%d", worker),
					Node:  fmt.Sprintf("step-%d", j),
					Kind:  "transition",
				}
				if err := queue.Publish(ctx, &event); err != nil {
					t.Errorf("publish: %v", err)
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for producers and consumers")
	}

	assert.Equal(t, workers*eventsPerWorker, consumed)
	assert.Equal(t, 0, queue.Size())
}

func TestContextCancellation(t *testing.T) {
	queue := NewQueue[runEvent](DefaultConfig())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	event := runEvent{RunID: "run-1"}
	assert.Error(t, queue.Publish(cancelled, &event))

	expiring, expire := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer expire()
	_, err := queue.Consume(expiring)
	assert.Error(t, err, "a blocked consume unblocks when the context ends")

	// the queue stays usable afterwards
	ctx := context.Background()
	assert.NoError(t, queue.Publish(ctx, &event))
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
