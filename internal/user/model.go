package user

import "time"

type User struct {
	ID          int64     `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	FullName    string    `json:"full_name" db:"full_name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Password    string    `json:"-" db:"password"` // bcrypt hash only
	IsSuperuser bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Subject is the authenticated caller as seen by the services.
type Subject struct {
	ID          int64
	IsSuperuser bool
}

func (u *User) Subject() Subject {
	return Subject{ID: u.ID, IsSuperuser: u.IsSuperuser}
}

// Authenticated reports whether the subject came from a verified token.
func (s Subject) Authenticated() bool {
	return s.ID > 0
}

// CanManageCatalog is the capability required to change plans and tutorials.
func CanManageCatalog(s Subject) bool {
	return s.Authenticated() && s.IsSuperuser
}
