package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamType enumerates the kinds of scheduled assessments.
type ExamType string

const (
	ExamTypeRegular ExamType = "REGULAR"
	ExamTypeFinal   ExamType = "FINAL"
	ExamTypeRetake  ExamType = "RETAKE"
)

// Exam represents a scheduled assessment of one subject using one paper.
// The time window is [StartTime, EndTime); EndTime is stored explicitly,
// independent of DurationMinutes, so the sweep can scan fixed boundaries.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	SubjectID       int       `json:"subject_id"`
	PaperID         uuid.UUID `json:"paper_id"`
	TeacherID       int       `json:"teacher_id"`
	Type            ExamType  `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WindowOpen reports whether the exam accepts student activity at t.
func (e *Exam) WindowOpen(t time.Time) bool {
	return !t.Before(e.StartTime) && t.Before(e.EndTime)
}

// PaperSnapshot is the paper as delivered to a student on session start:
// questions in order, option correctness stripped.
type PaperSnapshot struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Questions []QuestionForStudent `json:"questions"`
}
