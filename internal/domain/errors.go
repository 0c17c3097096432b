package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a rejected session config; see ValidationError.
	ErrValidation = errors.New("invalid session config")
	// ErrGeneration is returned when the question collaborator fails or is unreachable.
	ErrGeneration = errors.New("question generation failed")
	// ErrEmptyQuestionSet indicates the collaborator answered without usable questions.
	ErrEmptyQuestionSet = errors.New("empty question set")
	// ErrSubmission is returned when the scoring collaborator fails or is unreachable.
	ErrSubmission = errors.New("submission failed")
	// ErrInvalidTransition is returned when an action is not allowed in the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	// ErrRequestPending is returned for phase-changing actions while a collaborator call is in flight.
	ErrRequestPending = errors.New("request in flight")
	// ErrNoSelection is returned when advancing past a question without a choice.
	ErrNoSelection = errors.New("no choice selected")
	// ErrIncomplete is returned for a manual submit while questions are unanswered.
	ErrIncomplete = errors.New("not every question is answered")
	// ErrIndexOutOfRange indicates a ledger index outside the question set.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrChoiceOutOfRange indicates a choice index outside the question's choices.
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	// ErrSessionClosed is returned for actions on a session that has been closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFallbackNotFound indicates no fallback question set exists for a request.
	ErrFallbackNotFound = errors.New("fallback question set not found")
)

// ValidationError describes a config field rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
