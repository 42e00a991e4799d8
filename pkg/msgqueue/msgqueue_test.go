package msgqueue

import (
	"context"
	"testing"
	"time"
)

func TestControlJumpsData(t *testing.T) {
	q := New(0, 0)
	if err := q.Push(Message{Type: DemuxerPacket, Priority: PriorityData}); err != nil {
		t.Fatalf("Push data: %v", err)
	}
	if err := q.Push(Message{Type: GeneralFlush, Priority: PriorityControl}); err != nil {
		t.Fatalf("Push control: %v", err)
	}

	m, err := q.Pop(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if m.Type != GeneralFlush {
		t.Fatalf("Pop() = %v, want control message popped first", m.Type)
	}
}

func TestDataFIFOOrder(t *testing.T) {
	q := New(0, 0)
	q.Push(Message{Type: DemuxerPacket, Priority: PriorityData, Bytes: 1})
	q.Push(Message{Type: AudioSilence, Priority: PriorityData, Bytes: 1})

	first, _ := q.Pop(context.Background(), time.Second)
	second, _ := q.Pop(context.Background(), time.Second)
	if first.Type != DemuxerPacket || second.Type != AudioSilence {
		t.Fatalf("got order %v, %v; want FIFO", first.Type, second.Type)
	}
}

func TestPushRejectsOverByteBound(t *testing.T) {
	q := New(100, 0)
	if err := q.Push(Message{Priority: PriorityData, Bytes: 60}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(Message{Priority: PriorityData, Bytes: 60}); err != ErrFull {
		t.Fatalf("second push = %v, want ErrFull", err)
	}
}

func TestPushRejectsOverDurationBound(t *testing.T) {
	q := New(0, 5*time.Second)
	if err := q.Push(Message{Priority: PriorityData, Duration: 3 * time.Second}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(Message{Priority: PriorityData, Duration: 3 * time.Second}); err != ErrFull {
		t.Fatalf("second push = %v, want ErrFull", err)
	}
}

// Control messages always succeed even when the data bound is already full.
func TestControlNeverBoundedByDataLimits(t *testing.T) {
	q := New(10, 0)
	q.Push(Message{Priority: PriorityData, Bytes: 10})
	if err := q.Push(Message{Priority: PriorityControl, Bytes: 1_000_000}); err != nil {
		t.Fatalf("control push = %v, want nil (never bounded)", err)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New(0, 0)
	done := make(chan Message, 1)
	go func() {
		m, err := q.Pop(context.Background(), 2*time.Second)
		if err != nil {
			t.Errorf("Pop: %v", err)
			return
		}
		done <- m
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(Message{Type: GeneralEOF, Priority: PriorityData})

	select {
	case m := <-done:
		if m.Type != GeneralEOF {
			t.Fatalf("got %v, want GeneralEOF", m.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestPopTimesOut(t *testing.T) {
	q := New(0, 0)
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	if err != context.DeadlineExceeded {
		t.Fatalf("Pop() err = %v, want DeadlineExceeded", err)
	}
}

func TestPopUnblocksOnContextCancel(t *testing.T) {
	q := New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx, 5*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("Pop() err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after context cancel")
	}
}

func TestAbortWakesBlockedPop(t *testing.T) {
	q := New(0, 0)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background(), 5*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Abort()

	select {
	case err := <-errCh:
		if err != ErrAborted {
			t.Fatalf("Pop() err = %v, want ErrAborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Abort")
	}

	if _, err := q.Pop(context.Background(), time.Second); err != ErrAborted {
		t.Fatalf("Pop after abort = %v, want ErrAborted", err)
	}
	if err := q.Push(Message{Priority: PriorityData}); err != ErrAborted {
		t.Fatalf("Push after abort = %v, want ErrAborted", err)
	}
}

func TestClearDropsEverything(t *testing.T) {
	q := New(0, 0)
	q.Push(Message{Priority: PriorityData, Bytes: 10})
	q.Push(Message{Priority: PriorityControl})
	q.Clear()

	if q.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", q.Len())
	}
}

func TestPushFrontReordersWithinPriority(t *testing.T) {
	q := New(0, 0)
	q.Push(Message{Type: DemuxerPacket, Priority: PriorityData})
	q.PushFront(Message{Type: GeneralSynchronize, Priority: PriorityData})

	m, _ := q.Pop(context.Background(), time.Second)
	if m.Type != GeneralSynchronize {
		t.Fatalf("Pop() = %v, want the barrier message pushed back to front", m.Type)
	}
}
