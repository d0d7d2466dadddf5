package models

import "time"

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	Salt         string    `db:"salt"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Group is a named set of users a grant can target.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}
