package encode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTrackQueuePreservesSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var got []uint64
	q := NewTrackQueue(Video, func(c Chunk) error {
		// A slow writer forces Push to wait on the consumer.
		time.Sleep(100 * time.Microsecond)
		mu.Lock()
		got = append(got, c.Seq)
		mu.Unlock()
		return nil
	})
	defer q.Close()

	for i := uint64(0); i < 200; i++ {
		if err := q.Push(context.Background(), Chunk{Track: Video, Seq: i}); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 200 {
		t.Fatalf("expected 200 chunks, got %d", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i) {
			t.Fatalf("chunk %d has seq %d", i, seq)
		}
	}
}

func TestTrackQueueStopsWritingAfterError(t *testing.T) {
	boom := errors.New("disk full")
	writes := 0
	q := NewTrackQueue(Audio, func(c Chunk) error {
		writes++
		if c.Seq == 2 {
			return boom
		}
		return nil
	})
	defer q.Close()

	for i := uint64(0); i < 3; i++ {
		if err := q.Push(context.Background(), Chunk{Seq: i}); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if err := q.Drain(); !errors.Is(err, boom) {
		t.Fatalf("Drain() = %v, want %v", err, boom)
	}
	if err := q.Push(context.Background(), Chunk{Seq: 3}); !errors.Is(err, boom) {
		t.Fatalf("Push after failure = %v, want %v", err, boom)
	}
	if writes != 3 {
		t.Fatalf("expected 3 writes, got %d", writes)
	}
}

func TestTrackQueuePushHonorsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewTrackQueue(Video, func(Chunk) error {
		<-release
		return nil
	})

	// The first push is taken by the consumer, which then blocks.
	if err := q.Push(context.Background(), Chunk{Seq: 0}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, Chunk{Seq: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	q.Close()
	q.Close()
}
