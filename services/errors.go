package services

import (
	"errors"
	"fmt"

	"editorial-desk/models"
)

var (
	// ErrInvalidTransition is returned for a status change the transition table does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusConflict means the submission changed status between read and write.
	ErrStatusConflict = errors.New("submission status changed concurrently")
	// ErrUnknownEvent rejects workflow events without a template.
	ErrUnknownEvent = errors.New("unknown workflow event")
	// ErrUnknownJob rejects job names outside the catalogue.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidInput flags malformed caller input, e.g. an unknown deadline type.
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError names the rejected edge.
type TransitionError struct {
	From models.SubmissionStatus
	To   models.SubmissionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move submission from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
