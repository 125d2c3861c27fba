package models

import (
	"fmt"
	"strings"
)

// SubmissionStatus is the lifecycle state of a manuscript.
type SubmissionStatus string

const (
	StatusNew          SubmissionStatus = "NEW"
	StatusUnderReview  SubmissionStatus = "UNDER_REVIEW"
	StatusRevision     SubmissionStatus = "REVISION"
	StatusAccepted     SubmissionStatus = "ACCEPTED"
	StatusRejected     SubmissionStatus = "REJECTED"
	StatusDeskReject   SubmissionStatus = "DESK_REJECT"
	StatusInProduction SubmissionStatus = "IN_PRODUCTION"
	StatusPublished    SubmissionStatus = "PUBLISHED"
)

// transitions is the only source of legal status edges.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusNew:          {StatusUnderReview, StatusDeskReject},
	StatusUnderReview:  {StatusRevision, StatusAccepted, StatusRejected},
	StatusRevision:     {StatusUnderReview},
	StatusAccepted:     {StatusInProduction},
	StatusRejected:     nil,
	StatusDeskReject:   nil,
	StatusInProduction: {StatusPublished},
	StatusPublished:    nil,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []SubmissionStatus {
	return []SubmissionStatus{
		StatusNew, StatusUnderReview, StatusRevision, StatusAccepted,
		StatusRejected, StatusDeskReject, StatusInProduction, StatusPublished,
	}
}

// ParseStatus converts a raw value into a known status. Matching ignores case and surrounding whitespace.
func ParseStatus(raw string) (SubmissionStatus, error) {
	s := SubmissionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown submission status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the declared statuses.
func (s SubmissionStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next exists.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func (s SubmissionStatus) NextStatuses() []SubmissionStatus {
	out := make([]SubmissionStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// IsTerminal reports whether no edge leaves s.
func (s SubmissionStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s SubmissionStatus) String() string { return string(s) }
