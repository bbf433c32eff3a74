package user

import "context"

type Repository interface {
	Create(ctx context.Context, loginID, displayName, passwordHash string) (*User, error)
	FindByLoginID(ctx context.Context, loginID string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
}
