package database

import (
	"context"
)

// Database defines the methods for user account persistence.
type Database interface {
	// Close closes the database connection.
	Close() error

	// CreateUser creates a new user.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername gets a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByID gets a user by ID.
	GetUserByID(ctx context.Context, id uint64) (*User, error)

	// UpdateUser updates an existing user.
	UpdateUser(ctx context.Context, user *User) error

	// DeleteUser deletes a user by ID.
	DeleteUser(ctx context.Context, id uint64) error

	// ListUsers gets all users.
	ListUsers(ctx context.Context) ([]*User, error)
}
