package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStateResponse is the student-facing view of their session, used on
// reconnect. RemainingSeconds is computed per student: the earlier of the
// personal deadline (started_at + duration) and the exam end boundary.
// AnsweredQuestionIDs lets the client restore its progress marks.
type ExamStateResponse struct {
	Status              SessionStatus `json:"status"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	SubmittedAt         *time.Time    `json:"submitted_at,omitempty"`
	RemainingSeconds    int64         `json:"remaining_seconds"`
	RetakeNeeded        bool          `json:"retake_needed"`
	AnsweredQuestionIDs []uuid.UUID   `json:"answered_question_ids,omitempty"`
}

// ExamResult is one row of a teacher's per-exam result listing.
type ExamResult struct {
	StudentID    int           `json:"student_id"`
	StudentName  string        `json:"student_name"`
	Status       SessionStatus `json:"status"`
	TotalScore   float64       `json:"total_score"`
	FullyGraded  bool          `json:"fully_graded"`
	RetakeNeeded bool          `json:"retake_needed"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
}

// MonitorEvent is one session lifecycle notification pushed to the
// teacher monitor channel of an exam.
type MonitorEvent struct {
	ExamID    string        `json:"exam_id"`
	StudentID int           `json:"student_id"`
	Status    SessionStatus `json:"status"`
	At        time.Time     `json:"at"`
}
