package model

// Student is the thin identity record the engine needs; the full student
// profile lives with the administration collaborator.
type Student struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	NISN         string `json:"nisn"`
	PasswordHash string `json:"-"`
}

// StudentLoginRequest is the payload for student login.
type StudentLoginRequest struct {
	NISN     string `json:"nisn" binding:"required"`
	Password string `json:"password" binding:"required"`
}
