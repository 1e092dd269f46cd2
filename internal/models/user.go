package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsAdmin      bool      `json:"is_admin"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Actor is the authenticated caller of a request, as seen by the ledger.
type Actor struct {
	UserID   int
	Username string
	IsAdmin  bool
}

// ActorFor returns the actor identity of a loaded user
func ActorFor(u User) Actor {
	return Actor{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

// CanModify reports whether the actor may delete a record owned by ownerID
func (a Actor) CanModify(ownerID int) bool {
	return a.IsAdmin || (a.UserID != 0 && a.UserID == ownerID)
}

type RegisterRequest struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	Password2 string `json:"password2" form:"password2"`
	FirstName string `json:"first_name" form:"firstname"`
	LastName  string `json:"last_name" form:"lastname"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type AuthResponse struct {
	Token        string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	UserID       int    `json:"user_id"`
	IsAdmin      bool   `json:"is_admin"`
}
