package model

// Subject is a lookup-only collaborator record (exam listings join on it).
type Subject struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}
