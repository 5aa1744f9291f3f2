package model

// Teacher is the owning-teacher identity for exams. Subject assignment and
// the rest of the profile belong to the administration collaborator.
type Teacher struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	SubjectID    *int   `json:"subject_id,omitempty"`
	PasswordHash string `json:"-"`
}

// TeacherLoginRequest is the payload for teacher login.
type TeacherLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// DisciplinaryRequest is the payload for marking a student disciplinary.
type DisciplinaryRequest struct {
	Comment string `json:"comment" binding:"required,min=3,max=500"`
}
