package mapping

import (
	"context"
	"fmt"

	"github.com/dhwaniris/permsync/internal/settings"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

// Validator enforces document invariants before anything is persisted.
// Validation is short-circuiting: the first violation is returned and no
// grant is touched.
type Validator struct {
	settings settings.Repository
}

func NewValidator(settingsRepo settings.Repository) *Validator {
	return &Validator{settings: settingsRepo}
}

// Validate checks doc against the already-resolved effective user list.
func (v *Validator) Validate(ctx context.Context, doc *Document, users []string) error {
	sys, err := v.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !sys.ApplyStrictUserPermissions {
		return cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("strict user permissions are not enabled: set %s in system settings", settings.StrictUserPermissionsFlag), nil)
	}

	if doc.ApplyToRole && len(doc.Roles) == 0 {
		return cerr.NewError(cerr.InvalidArgument,
			"at least one role must be selected when apply_to_role is set", nil)
	}

	if err := v.validateRows(doc, users); err != nil {
		return err
	}
	return v.validateDefaults(doc, users)
}

type rowKey struct {
	user               string
	allow              string
	forValue           string
	applicableFor      string
	applyToAllDoctypes bool
}

type conflictKey struct {
	allow    string
	forValue string
}

func (v *Validator) validateRows(doc *Document, users []string) error {
	seen := make(map[rowKey]struct{})
	globals := make(map[conflictKey]struct{})
	scoped := make(map[conflictKey]struct{})

	for i, row := range doc.Rows {
		if row.Allow == "" {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("row %d: allow is required", i+1), nil)
		}
		if row.ForValue == "" {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("row %d: for_value is required", i+1), nil)
		}
		if !row.ApplyToAllDoctypes && row.ApplicableFor == "" {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("row %d: applicable_for is required for scoped permissions", i+1), nil)
		}

		for _, user := range users {
			key := rowKey{
				user:               user,
				allow:              row.Allow,
				forValue:           row.ForValue,
				applicableFor:      row.ApplicableFor,
				applyToAllDoctypes: row.ApplyToAllDoctypes,
			}
			if _, ok := seen[key]; ok {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("duplicate permission rows for user %q", user), nil)
			}
			seen[key] = struct{}{}
		}

		ck := conflictKey{allow: row.Allow, forValue: row.ForValue}
		if row.ApplyToAllDoctypes {
			if _, ok := scoped[ck]; ok {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("conflicting global and scoped permissions for %q and value %q", row.Allow, row.ForValue), nil)
			}
			globals[ck] = struct{}{}
		} else {
			if _, ok := globals[ck]; ok {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("conflicting scoped and global permissions for %q and value %q", row.Allow, row.ForValue), nil)
			}
			scoped[ck] = struct{}{}
		}
	}
	return nil
}

type defaultKey struct {
	user  string
	allow string
}

func (v *Validator) validateDefaults(doc *Document, users []string) error {
	seen := make(map[defaultKey]struct{})
	for _, row := range doc.Rows {
		if !row.IsDefault {
			continue
		}
		for _, user := range users {
			key := defaultKey{user: user, allow: row.Allow}
			if _, ok := seen[key]; ok {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("multiple default permissions for user %q and doctype %q, only one is allowed", user, row.Allow), nil)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}
