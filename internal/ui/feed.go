package ui

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olivier-w/beatframe/internal/preview"
	"github.com/olivier-w/beatframe/internal/render"
)

// Feed carries render callbacks to the UI. Sends never block the render
// goroutine: when the UI falls behind, older updates are replaced by newer
// ones.
type Feed struct {
	progress chan render.Progress
	thumbs   chan string

	renderer *preview.Renderer
	interval time.Duration
	cols     atomic.Int32
	rows     atomic.Int32
	last     time.Time
	now      func() time.Time

	closeOnce sync.Once
}

// NewFeed renders at most one thumbnail per interval.
func NewFeed(r *preview.Renderer, interval time.Duration) *Feed {
	f := &Feed{
		progress: make(chan render.Progress, 1),
		thumbs:   make(chan string, 1),
		renderer: r,
		interval: interval,
		now:      time.Now,
	}
	f.SetSize(48, 12)
	return f
}

// SetSize bounds the thumbnail in terminal cells.
func (f *Feed) SetSize(cols, rows int) {
	f.cols.Store(int32(cols))
	f.rows.Store(int32(rows))
}

// OnProgress is a render.Options.OnProgress callback.
func (f *Feed) OnProgress(p render.Progress) {
	sendLatest(f.progress, p)
}

// OnFrame is a render.Options.OnFrame callback.
func (f *Feed) OnFrame(_ *render.Job, frame *image.RGBA, index int) {
	if f.renderer == nil {
		return
	}
	now := f.now()
	if index > 0 && now.Sub(f.last) < f.interval {
		return
	}
	f.last = now
	b := frame.Bounds()
	w, h := preview.Fit(int(f.cols.Load()), int(f.rows.Load()), b.Dx(), b.Dy())
	if w == 0 || h == 0 {
		return
	}
	sendLatest(f.thumbs, f.renderer.Render(frame, w, h))
}

// Close ends the feed once the job has finished.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.progress)
		close(f.thumbs)
	})
}

func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
