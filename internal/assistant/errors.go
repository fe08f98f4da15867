package assistant

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration error returned from
// [New].
var ErrInvalidConfig = errors.New("assistant: invalid configuration")

// ErrCollaborator is matched by every [*CollaboratorError].
var ErrCollaborator = errors.New("assistant: collaborator failed")

// Stage names the collaborator that failed.
type Stage string

const (
	StageSTT Stage = "stt"
	StageLLM Stage = "llm"
	StageTTS Stage = "tts"
)

// CollaboratorError reports a failed or malformed response from the
// speech-to-text, reasoning, or speech-output boundary. Run recovers from it
// by returning to [StateAwaitingWakeWord].
type CollaboratorError struct {
	Stage Stage
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("assistant: %s: %v", e.Stage, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCollaborator) true for any CollaboratorError.
func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }
