package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamGrant authorizes one student for one exam. Sessions are never
// pre-created from grants; a session appears when the student starts or
// when the sweep marks the student absent.
type ExamGrant struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	StudentID int       `json:"student_id"`
	// ExpiresAt, when set, exempts the grant from the sweep's late-start
	// pass (the student is expected at a different sitting).
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
