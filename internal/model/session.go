package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. The status is derived from
// the session's fields, not stored: a session row only exists once the
// student (or the sweep) has touched the attempt.
type SessionStatus string

const (
	SessionStatusNotStarted   SessionStatus = "NOT_STARTED"
	SessionStatusInProgress   SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted    SessionStatus = "SUBMITTED"
	SessionStatusAbsent       SessionStatus = "ABSENT"
	SessionStatusDisciplinary SessionStatus = "DISCIPLINARY"
)

// ExamSession is one student's attempt record for one exam.
// SubmittedAt is set at most once; after that no answer writes are accepted.
// Absent and Disciplinary are terminal flags.
type ExamSession struct {
	ID             uuid.UUID  `json:"id"`
	ExamID         uuid.UUID  `json:"exam_id"`
	StudentID      int        `json:"student_id"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	Absent         bool       `json:"absent"`
	Disciplinary   bool       `json:"disciplinary"`
	RetakeNeeded   bool       `json:"retake_needed"`
	TeacherComment string     `json:"teacher_comment,omitempty"`
}

// Status derives the state machine position from the stored fields.
func (s *ExamSession) Status() SessionStatus {
	switch {
	case s.Disciplinary:
		return SessionStatusDisciplinary
	case s.Absent:
		return SessionStatusAbsent
	case s.SubmittedAt != nil:
		return SessionStatusSubmitted
	case s.StartedAt != nil:
		return SessionStatusInProgress
	default:
		return SessionStatusNotStarted
	}
}

// Terminal reports whether the session rejects further state-advancing
// actions (force-submit excepted).
func (s *ExamSession) Terminal() bool {
	return s.Absent || s.Disciplinary || s.SubmittedAt != nil
}
