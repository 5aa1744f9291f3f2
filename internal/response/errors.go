package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam session lifecycle ────────────────────────────────────────
	ErrExamNotOpen        ErrCode = "EXAM_NOT_OPEN"
	ErrExamWindowClosed   ErrCode = "EXAM_WINDOW_CLOSED"
	ErrNotAuthorized      ErrCode = "NOT_AUTHORIZED"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionNotStarted  ErrCode = "SESSION_NOT_STARTED"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrMarkedAbsent       ErrCode = "MARKED_ABSENT"
	ErrMarkedDisciplinary ErrCode = "MARKED_DISCIPLINARY"
	ErrQuestionNotInPaper ErrCode = "QUESTION_NOT_IN_PAPER"
	ErrMalformedAnswer    ErrCode = "MALFORMED_ANSWER"
	ErrIncompleteAnswers  ErrCode = "INCOMPLETE_ANSWERS"

	// ─── Grading ───────────────────────────────────────────────────────
	ErrNotExamTeacher      ErrCode = "NOT_EXAM_TEACHER"
	ErrAnswerNotSubjective ErrCode = "ANSWER_NOT_SUBJECTIVE"
	ErrScoreOutOfRange     ErrCode = "SCORE_OUT_OF_RANGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email/NISN atau kata sandi salah."
	case ErrSessionActive:
		return "Anda sudah login di perangkat lain."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam session lifecycle ────────────────────────────────────────
	case ErrExamNotOpen:
		return "Ujian ini belum dibuka."
	case ErrExamWindowClosed:
		return "Jendela waktu ujian telah berakhir."
	case ErrNotAuthorized:
		return "Anda tidak terdaftar sebagai peserta ujian ini."
	case ErrSessionNotActive:
		return "Sesi ujian Anda tidak aktif."
	case ErrSessionNotStarted:
		return "Siswa belum memulai ujian ini."
	case ErrAlreadySubmitted:
		return "Jawaban ujian sudah dikumpulkan."
	case ErrMarkedAbsent:
		return "Anda tercatat tidak hadir pada ujian ini."
	case ErrMarkedDisciplinary:
		return "Sesi ujian Anda dihentikan karena pelanggaran."
	case ErrQuestionNotInPaper:
		return "Pertanyaan ini bukan bagian dari ujian."
	case ErrMalformedAnswer:
		return "Format jawaban tidak sesuai dengan jenis pertanyaan."
	case ErrIncompleteAnswers:
		return "Masih ada pertanyaan yang belum dijawab."

	// ─── Grading ───────────────────────────────────────────────────────
	case ErrNotExamTeacher:
		return "Ujian ini bukan milik Anda."
	case ErrAnswerNotSubjective:
		return "Jawaban ini dinilai otomatis dan tidak dapat dinilai manual."
	case ErrScoreOutOfRange:
		return "Nilai melebihi bobot pertanyaan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
