package users

import "time"

type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByID(id string) (*User, error)
	GetByUserID(userID string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetBlocked(userID string, blocked bool) error
	SetLastLogin(userID string, at time.Time) error
}
