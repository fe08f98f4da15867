package assistant

// State is the position of the conversation state machine.
type State int

const (
	// StateIdle is the state before [Assistant.Run] starts the loop.
	StateIdle State = iota

	// StateAwaitingWakeWord captures short windows and transcribes them
	// looking for the activation phrase.
	StateAwaitingWakeWord

	// StateListening captures longer windows and forwards detected speech.
	StateListening

	// StateProcessing is held while a command is answered: reasoning, speech
	// synthesis, and playback.
	StateProcessing
)

// String returns the snake_case state name. Logs and metrics use it.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingWakeWord:
		return "awaiting_wake_word"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
