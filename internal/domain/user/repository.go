package user

import "context"

type Repository interface {
	// UpsertFromAuth inserts the user or refreshes its email, name and last
	// login, leaving role and active flag untouched. It returns the stored row.
	UpsertFromAuth(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int64, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	// SetRoleIfDefault changes the role only while it is still the default.
	SetRoleIfDefault(ctx context.Context, id, role string) (bool, error)
}
