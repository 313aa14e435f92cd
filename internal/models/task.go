package models

import "time"

// Task is a minimal todo item for the standalone demo task API. It is not
// related to the attendance domain.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
