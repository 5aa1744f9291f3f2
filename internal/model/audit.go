package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates the session transitions worth a trail entry.
type AuditAction string

const (
	AuditActionStartSession     AuditAction = "START_SESSION"
	AuditActionSubmitAnswer     AuditAction = "SUBMIT_ANSWER"
	AuditActionSubmitExam       AuditAction = "SUBMIT_EXAM"
	AuditActionForceSubmit      AuditAction = "FORCE_SUBMIT"
	AuditActionMarkAbsent       AuditAction = "MARK_ABSENT"
	AuditActionMarkDisciplinary AuditAction = "MARK_DISCIPLINARY"
	AuditActionGradeAnswer      AuditAction = "GRADE_ANSWER"
)

// AuditEntry is one record of the trail. ActorID is the explicit identity
// supplied by the caller; system-driven transitions use ActorID 0.
type AuditEntry struct {
	ExamID     uuid.UUID   `json:"exam_id"`
	StudentID  int         `json:"student_id"`
	ActorID    int         `json:"actor_id"`
	Action     AuditAction `json:"action"`
	Detail     string      `json:"detail,omitempty"`
	Outcome    string      `json:"outcome"`
	RecordedAt time.Time   `json:"recorded_at"`
}
