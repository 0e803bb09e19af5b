package ui

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/beatframe/internal/preview"
	"github.com/olivier-w/beatframe/internal/render"
)

type fakeJob struct {
	cancels int
	result  *render.Result
	err     error
}

func (j *fakeJob) Cancel() { j.cancels++ }

func (j *fakeJob) Wait() (*render.Result, error) { return j.result, j.err }

func TestRenderModelCancelsOnce(t *testing.T) {
	job := &fakeJob{}
	m := NewRender("Song", "Artist", job, nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Fatal("cancel should wait for the job instead of quitting")
	}
	m = next.(RenderModel)
	if job.cancels != 1 || !m.cancelling {
		t.Fatalf("cancels=%d cancelling=%v", job.cancels, m.cancelling)
	}
	if !strings.Contains(m.View(), "stopping after the current frame") {
		t.Fatalf("expected cancelling hint in view:\n%s", m.View())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if job.cancels != 1 {
		t.Fatalf("second quit key should not cancel again, cancels=%d", job.cancels)
	}
	m = next.(RenderModel)
	if _, err := m.Outcome(); !errors.Is(err, render.ErrCancelled) {
		t.Fatalf("Outcome before done = %v, want ErrCancelled", err)
	}
}

func TestRenderModelShowsProgress(t *testing.T) {
	m := NewRender("Song", "", &fakeJob{}, nil)
	next, _ := m.Update(progressMsg(render.Progress{
		State:       render.EncodingVideoFrames,
		Phase:       "Rendering video frames",
		Percent:     42,
		Frame:       21,
		TotalFrames: 50,
	}))
	m = next.(RenderModel)
	view := m.View()
	for _, want := range []string{"Song", "Rendering video frames", "42%", "frame 21/50", "elapsed 0:00"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderModelDoneQuits(t *testing.T) {
	want := &render.Result{Name: "song.mp4"}
	m := NewRender("Song", "", &fakeJob{}, nil)
	next, cmd := m.Update(doneMsg{result: want})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	m = next.(RenderModel)
	res, err := m.Outcome()
	if err != nil || res != want {
		t.Fatalf("Outcome() = %v, %v", res, err)
	}
	if m.View() != "" {
		t.Fatal("finished model should render nothing")
	}
}

func TestWaitForDoneClosesFeed(t *testing.T) {
	feed := NewFeed(nil, 0)
	job := &fakeJob{err: render.ErrCancelled}
	m := NewRender("Song", "", job, feed)

	msg := m.waitForDone()()
	done, ok := msg.(doneMsg)
	if !ok || !errors.Is(done.err, render.ErrCancelled) {
		t.Fatalf("unexpected message %#v", msg)
	}
	if got := m.waitForProgress()(); got != nil {
		t.Fatalf("expected nil after feed closed, got %#v", got)
	}
}

func TestFeedKeepsLatestProgress(t *testing.T) {
	feed := NewFeed(nil, 0)
	for i := 0; i <= 10; i++ {
		feed.OnProgress(render.Progress{Percent: i * 10})
	}
	if got := <-feed.progress; got.Percent != 100 {
		t.Fatalf("expected latest progress, got %d", got.Percent)
	}
}

func TestFeedThrottlesThumbnails(t *testing.T) {
	feed := NewFeed(preview.NewRendererMode(preview.ColorOff), time.Second)
	clock := time.Unix(0, 0)
	feed.now = func() time.Time { return clock }
	feed.SetSize(8, 4)

	frame := image.NewRGBA(image.Rect(0, 0, 16, 8))
	frame.SetRGBA(0, 0, color.RGBA{255, 255, 255, 255})

	feed.OnFrame(nil, frame, 0)
	first := <-feed.thumbs
	if first == "" {
		t.Fatal("expected first frame thumbnail")
	}

	clock = clock.Add(100 * time.Millisecond)
	feed.OnFrame(nil, frame, 1)
	select {
	case <-feed.thumbs:
		t.Fatal("thumbnail inside the interval should be skipped")
	default:
	}

	clock = clock.Add(time.Second)
	feed.OnFrame(nil, frame, 2)
	select {
	case <-feed.thumbs:
	default:
		t.Fatal("expected thumbnail after the interval")
	}
}
