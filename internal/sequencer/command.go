package sequencer

// Action names a remote playback instruction.
type Action string

const (
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
	ActionSkip   Action = "skip"
)

// Command is one instruction from a remote authority. An empty Action
// means play; an empty Track means "next in queue".
type Command struct {
	Action Action
	Track  string
}
