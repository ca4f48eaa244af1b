package handler

import (
	"context"
	"errors"

	"github.com/authgrid/authgrid/internal/apiserver/database"
	"github.com/authgrid/authgrid/internal/auth"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"gorm.io/gorm"
)

// Directory adapts the user database to the auth engine's directory
// contract. Missing and inactive accounts both surface as
// authentication failures so callers cannot probe for usernames.
type Directory struct {
	db database.Database
}

// NewDirectory creates a directory over the user database.
func NewDirectory(db database.Database) *Directory {
	return &Directory{db: db}
}

var _ auth.UserDirectory = (*Directory)(nil)

func (d *Directory) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	user, err := d.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errorx.ErrUnauthorized
	}
	return &auth.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.Password,
	}, nil
}
