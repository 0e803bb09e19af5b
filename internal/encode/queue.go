package encode

import (
	"context"
	"sync"
)

// TrackQueue forwards one track's chunks to a writer from a single consumer
// goroutine, so chunks arrive in submission order. Push blocks while the
// consumer is busy.
type TrackQueue struct {
	track Track
	write func(Chunk) error
	ch    chan Chunk

	pending sync.WaitGroup
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// NewTrackQueue starts the consumer. write is typically Muxer.WriteChunk.
func NewTrackQueue(track Track, write func(Chunk) error) *TrackQueue {
	q := &TrackQueue{
		track: track,
		write: write,
		ch:    make(chan Chunk),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *TrackQueue) run() {
	defer close(q.done)
	for c := range q.ch {
		// After a failure chunks are still consumed so Push never
		// deadlocks, but nothing more reaches the writer.
		if q.Err() == nil {
			if err := q.write(c); err != nil {
				q.mu.Lock()
				q.err = err
				q.mu.Unlock()
			}
		}
		q.pending.Done()
	}
}

// Push hands c to the consumer. It is a ChunkSink.
func (q *TrackQueue) Push(ctx context.Context, c Chunk) error {
	if err := q.Err(); err != nil {
		return err
	}
	q.pending.Add(1)
	select {
	case q.ch <- c:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// Drain waits until every pushed chunk has been written and returns the
// first write error.
func (q *TrackQueue) Drain() error {
	q.pending.Wait()
	return q.Err()
}

// Err returns the first write error.
func (q *TrackQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Close stops the consumer. Push must not be called afterwards.
func (q *TrackQueue) Close() {
	q.once.Do(func() {
		close(q.ch)
		<-q.done
	})
}

func (q *TrackQueue) Track() Track { return q.track }
