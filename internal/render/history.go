package render

import (
	"context"
	"time"

	"github.com/olivier-w/beatframe/internal/encode"
)

// JobRecord is what a Recorder stores when a job starts.
type JobRecord struct {
	ID        string
	ProjectID string
	Source    string
	Format    encode.Format
	Width     int
	Height    int
	FrameRate int
	StartedAt time.Time
}

// Outcome is what a Recorder stores when a job ends.
type Outcome struct {
	State      State
	Frames     int
	Bytes      int
	Err        error
	FinishedAt time.Time
}

// Recorder persists job history. Recorder failures are logged and never
// fail a render.
type Recorder interface {
	Begin(ctx context.Context, rec JobRecord) error
	Finish(ctx context.Context, id string, out Outcome) error
}
