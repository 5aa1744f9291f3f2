package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examflow-backend/internal/middleware"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/response"
	"github.com/stemsi/examflow-backend/internal/service"
	"github.com/stemsi/examflow-backend/internal/validator"
)

// StudentExamHandler handles the student-facing session lifecycle.
type StudentExamHandler struct {
	sessions *service.SessionService
	audit    *service.AuditRecorder
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(sessions *service.SessionService, audit *service.AuditRecorder) *StudentExamHandler {
	return &StudentExamHandler{sessions: sessions, audit: audit}
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Opens (or re-enters) the student's session and returns the paper snapshot.
func (h *StudentExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, paper, remaining, err := h.sessions.StartSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
			model.AuditActionStartSession, "", string(sessionErrCode(err)))
		failSession(c, err)
		return
	}
	h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
		model.AuditActionStartSession, "", "OK")

	response.Success(c, http.StatusOK, gin.H{
		"session":           sess,
		"paper":             paper,
		"remaining_seconds": remaining,
	})
}

// SubmitAnswer godoc
// POST /api/v1/student/exams/:exam_id/answers
// Validates, auto-grades (objective types) and stores one answer.
func (h *StudentExamHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := h.sessions.SubmitAnswer(c.Request.Context(), examID, claims.UserID, req)
	if err != nil {
		h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
			model.AuditActionSubmitAnswer, req.QuestionID.String(), string(sessionErrCode(err)))
		failSession(c, err)
		return
	}
	h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
		model.AuditActionSubmitAnswer, req.QuestionID.String(), "OK")

	response.Success(c, http.StatusOK, gin.H{
		"record_id": rec.ID,
		"status":    rec.Status,
	})
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Finalizes the student's own attempt; every question must be answered.
func (h *StudentExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, total, err := h.sessions.SubmitExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
			model.AuditActionSubmitExam, "", string(sessionErrCode(err)))
		failSession(c, err)
		return
	}
	h.audit.Record(c.Request.Context(), examID, claims.UserID, claims.UserID,
		model.AuditActionSubmitExam, "", "OK")

	response.Success(c, http.StatusOK, gin.H{
		"session":      sess,
		"total_score":  total,
		"submitted_at": sess.SubmittedAt,
	})
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Reports the session status and the per-student remaining time.
func (h *StudentExamHandler) GetExamState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessions.GetExamState(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// sessionErrCode maps a service error to its API error code.
func sessionErrCode(err error) response.ErrCode {
	var incomplete *service.IncompleteAnswersError
	switch {
	case errors.Is(err, service.ErrExamNotOpen):
		return response.ErrExamNotOpen
	case errors.Is(err, service.ErrExamWindowClosed):
		return response.ErrExamWindowClosed
	case errors.Is(err, service.ErrNotAuthorized):
		return response.ErrNotAuthorized
	case errors.Is(err, service.ErrSessionNotActive):
		return response.ErrSessionNotActive
	case errors.Is(err, service.ErrSessionNotStarted):
		return response.ErrSessionNotStarted
	case errors.Is(err, service.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrMarkedAbsent):
		return response.ErrMarkedAbsent
	case errors.Is(err, service.ErrMarkedDisciplinary):
		return response.ErrMarkedDisciplinary
	case errors.Is(err, service.ErrQuestionNotInPaper):
		return response.ErrQuestionNotInPaper
	case errors.Is(err, service.ErrMalformedAnswer):
		return response.ErrMalformedAnswer
	case errors.As(err, &incomplete):
		return response.ErrIncompleteAnswers
	case errors.Is(err, service.ErrNotExamTeacher):
		return response.ErrNotExamTeacher
	case errors.Is(err, service.ErrAnswerNotSubjective):
		return response.ErrAnswerNotSubjective
	case errors.Is(err, service.ErrScoreOutOfRange):
		return response.ErrScoreOutOfRange
	case errors.Is(err, pgx.ErrNoRows):
		return response.ErrNotFound
	default:
		return response.ErrInternal
	}
}

// failSession writes the mapped error response for a session service error.
func failSession(c *gin.Context, err error) {
	code := sessionErrCode(err)

	status := http.StatusConflict
	switch code {
	case response.ErrNotFound:
		status = http.StatusNotFound
	case response.ErrNotAuthorized, response.ErrNotExamTeacher:
		status = http.StatusForbidden
	case response.ErrQuestionNotInPaper, response.ErrMalformedAnswer,
		response.ErrIncompleteAnswers, response.ErrScoreOutOfRange,
		response.ErrAnswerNotSubjective:
		status = http.StatusUnprocessableEntity
	case response.ErrInternal:
		status = http.StatusInternalServerError
	}

	if code == response.ErrIncompleteAnswers {
		var incomplete *service.IncompleteAnswersError
		if errors.As(err, &incomplete) {
			missing := make([]string, len(incomplete.Missing))
			for i, id := range incomplete.Missing {
				missing[i] = id.String()
			}
			response.FailWithFields(c, status, code, map[string]string{
				"missing_questions": strings.Join(missing, ","),
			})
			return
		}
	}

	response.Fail(c, status, code)
}
