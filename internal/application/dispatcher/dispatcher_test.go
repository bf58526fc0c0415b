package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/process-engine/internal/domain/event"
	"github.com/garyjia/process-engine/internal/domain/process"
)

func createdEvent() *event.Event {
	return event.NewProcessCreated(uuid.New(), process.TypePasswordReset, uuid.New())
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeProcessCreated, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeProcessCreated, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	if err := d.Dispatch(context.Background(), createdEvent()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order = %v", order)
	}
}

func TestDispatch_StopsOnFirstError(t *testing.T) {
	d := NewDispatcher()
	handlerErr := errors.New("handler failed")
	secondRan := false

	d.SubscribeNamed(event.TypeProcessCreated, "failing", func(ctx context.Context, evt *event.Event) error {
		return handlerErr
	})
	d.SubscribeNamed(event.TypeProcessCreated, "after", func(ctx context.Context, evt *event.Event) error {
		secondRan = true
		return nil
	})

	err := d.Dispatch(context.Background(), createdEvent())
	if !errors.Is(err, handlerErr) {
		t.Errorf("Dispatch() error = %v, want the handler failure", err)
	}
	if secondRan {
		t.Error("handler after the failure still ran")
	}
}

func TestDispatch_NoHandlersIsNoop(t *testing.T) {
	d := NewDispatcher()

	if err := d.Dispatch(context.Background(), createdEvent()); err != nil {
		t.Errorf("Dispatch() error = %v", err)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeProcessCreated, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("boom")
	})

	err := d.Dispatch(context.Background(), createdEvent())
	if err == nil {
		t.Fatal("Dispatch() swallowed a handler panic")
	}
}

func TestDispatchAsync_HandlerRuns(t *testing.T) {
	d := NewDispatcher()
	done := make(chan struct{})

	d.SubscribeNamed(event.TypeProcessCreated, "async", func(ctx context.Context, evt *event.Event) error {
		close(done)
		return nil
	})

	d.DispatchAsync(context.Background(), createdEvent())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestDispatchAsync_HandlerOutlivesCallerContext(t *testing.T) {
	d := NewDispatcher()
	callerDone := make(chan struct{})
	got := make(chan error, 1)

	d.SubscribeNamed(event.TypeProcessCreated, "slow", func(ctx context.Context, evt *event.Event) error {
		<-callerDone
		got <- ctx.Err()
		return nil
	})

	// The publisher's context ends with its request; the handler's
	// side effect must still run to completion.
	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, createdEvent())
	cancel()
	close(callerDone)

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("handler context died with the caller: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestDispatchAsync_FailureDoesNotReachPublisher(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	wg.Add(1)

	d.SubscribeNamed(event.TypeProcessCreated, "failing", func(ctx context.Context, evt *event.Event) error {
		defer wg.Done()
		return errors.New("handler failed")
	})

	d.DispatchAsync(context.Background(), createdEvent())
	wg.Wait()
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	ran := false

	d.SubscribeNamed(event.TypeProcessCreated, "target", func(ctx context.Context, evt *event.Event) error {
		ran = true
		return nil
	})
	d.Unsubscribe(event.TypeProcessCreated, "target")

	if err := d.Dispatch(context.Background(), createdEvent()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if ran {
		t.Error("unsubscribed handler still ran")
	}
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()
	handler := func(ctx context.Context, evt *event.Event) error { return nil }

	d.SubscribeNamed(event.TypeProcessCreated, "expiry-scheduler", handler)
	d.SubscribeNamed(event.TypeProcessStateChanged, "terminal-state-reactor", handler)

	infos := d.ListHandlers(event.TypeProcessCreated)
	if len(infos) != 1 || infos[0].Name != "expiry-scheduler" {
		t.Errorf("ListHandlers() = %v", infos)
	}
}

func TestClose(t *testing.T) {
	d := NewDispatcher()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), createdEvent()); err == nil {
		t.Error("Dispatch() on a closed dispatcher should fail")
	}
}
