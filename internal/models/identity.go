package models

// Identity is the user resolved from a connection credential.
type Identity struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"fullName"`
	Avatar   string `db:"avatar" json:"avatar,omitempty"`
}
