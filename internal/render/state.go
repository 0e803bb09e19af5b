package render

// State is a job's position in the render state machine.
type State int

const (
	Idle State = iota
	Initializing
	EncodingAudio
	EncodingVideoFrames
	Finalizing
	Done
	Cancelled
	Failed
)

// PackingLabel is shown while the muxer writes the container, the last
// step of Finalizing.
const PackingLabel = "Packing"

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case EncodingAudio:
		return "encoding_audio"
	case EncodingVideoFrames:
		return "encoding_video"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Label is the user-facing phase name. Terminal states have none.
func (s State) Label() string {
	switch s {
	case Initializing:
		return "Initializing"
	case EncodingAudio:
		return "Encoding audio"
	case EncodingVideoFrames:
		return "Rendering video frames"
	case Finalizing:
		return "Finalizing"
	default:
		return ""
	}
}

func (s State) Terminal() bool {
	return s == Done || s == Cancelled || s == Failed
}
