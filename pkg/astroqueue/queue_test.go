package astroqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type item struct {
	ts      uint32
	payload string
}

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for want := 0; want < 10; want++ {
		got, ok := q.PopBlocking()
		if !ok {
			t.Fatalf("pop %d: queue reported closed", want)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
		if err := q.Acknowledge(); err != nil {
			t.Fatalf("ack %d: %v", want, err)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
}

func TestQueue_PopDoesNotRemove(t *testing.T) {
	q := New[item]()
	want := item{ts: 1000, payload: "AAA="}
	_ = q.Push(want)

	for i := 0; i < 3; i++ {
		got, _ := q.PopBlocking()
		if got != want {
			t.Fatalf("attempt %d: expected %+v, got %+v", i, want, got)
		}
		if q.Len() != 1 {
			t.Fatalf("attempt %d: expected len 1, got %d", i, q.Len())
		}
	}
}

func TestQueue_AcknowledgeEmpty(t *testing.T) {
	q := New[int]()
	if err := q.Acknowledge(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[int]()
	got := make(chan int, 1)
	go func() {
		v, _ := q.PopBlocking()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("pop returned %d before any push", v)
	case <-time.After(50 * time.Millisecond):
	}

	_ = q.Push(42)
	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not return after push")
	}
}

func TestQueue_PushWakesOneWaiter(t *testing.T) {
	q := New[int]()
	woken := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			v, ok := q.PopBlocking()
			if ok {
				woken <- v
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)

	_ = q.Push(7)
	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("no waiter woke after push")
	}
	select {
	case v := <-woken:
		t.Fatalf("second waiter woke with %d after a single push", v)
	case <-time.After(100 * time.Millisecond):
	}

	q.Close()
}

func TestQueue_PopBlockingContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.PopBlockingContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	_ = q.Push(3)
	v, err := q.PopBlockingContext(context.Background())
	if err != nil || v != 3 {
		t.Fatalf("expected 3, got %d (%v)", v, err)
	}
}

func TestQueue_CloseReleasesWaiters(t *testing.T) {
	q := New[int]()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.PopBlocking()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after close")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not release waiter")
	}

	if err := q.Push(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on push after close, got %v", err)
	}
	if _, err := q.PopBlockingContext(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_FailedAttemptKeepsOrder(t *testing.T) {
	q := New[item]()
	e1 := item{ts: 1000, payload: "AAA="}
	e2 := item{ts: 1050, payload: "BBB="}
	_ = q.Push(e1)
	_ = q.Push(e2)

	head, _ := q.PopBlocking()
	if head != e1 {
		t.Fatalf("expected e1 at head, got %+v", head)
	}
	// failed delivery: nothing acknowledged
	if q.Len() != 2 {
		t.Fatalf("expected len 2 after failed attempt, got %d", q.Len())
	}
	head, _ = q.PopBlocking()
	if head != e1 {
		t.Fatalf("expected e1 again after failure, got %+v", head)
	}
	_ = q.Acknowledge()

	head, _ = q.PopBlocking()
	if head != e2 {
		t.Fatalf("expected e2 after ack, got %+v", head)
	}
}
