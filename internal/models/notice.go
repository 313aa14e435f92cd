package models

import "time"

// Notice is an announcement entry. The list is append-only and ordered by
// created_at descending; only admins may delete.
type Notice struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NoticeFilter scopes notice listing.
type NoticeFilter struct {
	Page     int
	PageSize int
}
