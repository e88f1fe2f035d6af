package entity

import "time"

// Role is the authorization level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// BootstrapUsername is the administrator created on first start.
const BootstrapUsername = "admin"

// User represents an account row in the `users` table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PasswordAlgo string    `db:"password_algo" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AuthView is the projection carried in session tokens and request contexts.
type AuthView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u *User) View() AuthView {
	return AuthView{ID: u.ID, Username: u.Username, Role: u.Role}
}

func (v AuthView) IsAdmin() bool { return v.Role == RoleAdmin }
