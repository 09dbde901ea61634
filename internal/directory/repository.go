package directory

import "context"

// Repository resolves role membership and answers user autocomplete queries.
type Repository interface {
	// UsersWithRoles returns the identifiers of enabled user principals
	// holding any of the given roles, in assignment order without duplicates.
	UsersWithRoles(ctx context.Context, roles []string) ([]string, error)

	// Search returns (id, full_name) pairs whose id matches the free text,
	// restricted to holders of any of the given roles when roles is
	// non-empty. start is a zero-based offset.
	Search(ctx context.Context, txt string, roles []string, start, pageLen int) ([]Match, error)

	CreateUser(ctx context.Context, u *User) error
	AssignRole(ctx context.Context, a *RoleAssignment) error
}
