package model

import "time"

type Method string

const (
	MethodFace Method = "FACE"
	MethodPIN  Method = "PIN"
)

// Outcome is the verdict recorded for an access attempt.
type Outcome string

const (
	OutcomeGranted      Outcome = "GRANTED"
	OutcomeDenied       Outcome = "DENIED"
	OutcomeError        Outcome = "ERROR"
	OutcomeNoFace       Outcome = "NO_FACE"
	OutcomeNoCandidates Outcome = "NO_CANDIDATES"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeGranted, OutcomeDenied, OutcomeError, OutcomeNoFace, OutcomeNoCandidates:
		return true
	}
	return false
}

// MatchMethod records which matcher path produced a score.
type MatchMethod string

const (
	MatchPrimary  MatchMethod = "PRIMARY"
	MatchFallback MatchMethod = "FALLBACK"
)

// UnknownSubject is recorded when no identity was resolved.
const UnknownSubject = "UNKNOWN"

// AccessAttempt is an immutable audit record.
type AccessAttempt struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	SubjectName string      `json:"subject_name"`
	Method      Method      `json:"method"`
	Outcome     Outcome     `json:"outcome"`
	Score       *float64    `json:"score,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	MatchMethod MatchMethod `json:"match_method,omitempty"`
}
