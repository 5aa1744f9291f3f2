package model

import (
	"time"

	"github.com/google/uuid"
)

// GradingStatus marks whether an answer record carries a final score.
type GradingStatus string

const (
	GradingStatusUngraded GradingStatus = "UNGRADED"
	GradingStatusGraded   GradingStatus = "GRADED"
)

// AnswerRecord is one student's answer to one question of one exam.
// Objective answers are graded synchronously at write time; subjective
// answers stay UNGRADED until a teacher writes a score. Force-submit fills
// gaps with synthetic empty records (score 0, GRADED).
type AnswerRecord struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	QuestionID uuid.UUID     `json:"question_id"`
	Answer     string        `json:"answer"`
	Score      float64       `json:"score"`
	Status     GradingStatus `json:"status"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for a student answering one question.
type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=10000"`
}

// GradeAnswerRequest is the payload for a teacher grading a subjective answer.
type GradeAnswerRequest struct {
	Score float64 `json:"score" binding:"min=0"`
}
