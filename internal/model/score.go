package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreRecord is the per-session aggregate. Its value is derived from the
// answer ledger: a pure sum once every answer is graded, a provisional sum
// while subjective answers are still pending.
type ScoreRecord struct {
	ID         uuid.UUID `json:"id"`
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  int       `json:"student_id"`
	TotalScore float64   `json:"total_score"`
	UploadTime time.Time `json:"upload_time"`
}
