// Package users declares the server-side repository contract for user rows.
package users

import (
	"context"

	"github.com/dmitrijs2005/cardvault/internal/server/models"
)

// Repository defines the user persistence operations the auth core needs.
// User management beyond this (profiles, deletion) belongs to collaborating
// services.
type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	// A duplicate username yields common.ErrUserAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin looks a user up by username. Absent users yield
	// common.ErrorNotFound.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetByID looks a user up by id. Absent users yield common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
