package store

import (
	"context"

	"f0oster/reconspy/identity"
)

// FullAdminRealms is the realm scope meaning "all realms, unrestricted".
// Report runs always search under it.
var FullAdminRealms = []string{"/"}

// OrderByClause is a single ordering term for paginated searches.
type OrderByClause struct {
	Field string
	Desc  bool
}

type UserDAO interface {
	FindAllUsers(ctx context.Context) ([]*identity.User, error)
}

type GroupDAO interface {
	FindAllGroups(ctx context.Context) ([]*identity.Group, error)
}

type AnyTypeDAO interface {
	FindAllAnyTypes(ctx context.Context) ([]*identity.AnyType, error)
	FindUserType(ctx context.Context) (*identity.AnyType, error)
	FindGroupType(ctx context.Context) (*identity.AnyType, error)
}

type VirSchemaDAO interface {
	FindByProvision(ctx context.Context, provision *identity.Provision) ([]*identity.VirSchema, error)
}

// AnySearchDAO runs condition-driven searches over one kind of identity
// object. Search pages are 1-based.
type AnySearchDAO interface {
	Count(ctx context.Context, realms []string, cond *SearchCond, kind identity.Kind) (int, error)
	Search(
		ctx context.Context,
		realms []string,
		cond *SearchCond,
		page, pageSize int,
		orderBy []OrderByClause,
		kind identity.Kind,
	) ([]identity.Any, error)
}
