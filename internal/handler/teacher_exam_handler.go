package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examflow-backend/internal/middleware"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/response"
	"github.com/stemsi/examflow-backend/internal/service"
	"github.com/stemsi/examflow-backend/internal/validator"
)

// TeacherExamHandler handles the teacher-facing surface: disciplinary
// ejection, manual grading and the result listing.
type TeacherExamHandler struct {
	sessions *service.SessionService
	grading  *service.GradingService
	audit    *service.AuditRecorder
}

// NewTeacherExamHandler creates a new TeacherExamHandler.
func NewTeacherExamHandler(sessions *service.SessionService, grading *service.GradingService, audit *service.AuditRecorder) *TeacherExamHandler {
	return &TeacherExamHandler{sessions: sessions, grading: grading, audit: audit}
}

// MarkDisciplinary godoc
// POST /api/v1/teacher/exams/:exam_id/students/:student_id/disciplinary
// Ejects a student from their attempt: force-submit, zero score, retake flagged.
func (h *TeacherExamHandler) MarkDisciplinary(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.DisciplinaryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.MarkDisciplinary(c.Request.Context(), examID, studentID, claims.UserID, req.Comment)
	if err != nil {
		h.audit.Record(c.Request.Context(), examID, studentID, claims.UserID,
			model.AuditActionMarkDisciplinary, req.Comment, string(sessionErrCode(err)))
		failSession(c, err)
		return
	}
	h.audit.Record(c.Request.Context(), examID, studentID, claims.UserID,
		model.AuditActionMarkDisciplinary, req.Comment, "OK")

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// GradeAnswer godoc
// POST /api/v1/teacher/answers/:record_id/grade
// Writes a manual score on a subjective answer record.
func (h *TeacherExamHandler) GradeAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	recordID, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := h.grading.GradeAnswer(c.Request.Context(), recordID, claims.UserID, req.Score)
	if err != nil {
		failSession(c, err)
		return
	}
	h.audit.Record(c.Request.Context(), rec.ExamID, rec.StudentID, claims.UserID,
		model.AuditActionGradeAnswer, rec.ID.String(), "OK")

	response.Success(c, http.StatusOK, gin.H{"record": rec})
}

// ListResults godoc
// GET /api/v1/teacher/exams/:exam_id/results?limit=50&offset=0
// Returns one result row per session of the exam. Without a limit the
// full listing is returned.
func (h *TeacherExamHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := h.grading.ListResults(c.Request.Context(), examID, claims.UserID, limit, offset)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"results": results,
		"limit":   limit,
		"offset":  offset,
	})
}
