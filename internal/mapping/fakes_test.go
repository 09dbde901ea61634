package mapping

import (
	"context"
	"fmt"

	"github.com/dhwaniris/permsync/internal/directory"
	"github.com/dhwaniris/permsync/internal/grant"
	"github.com/dhwaniris/permsync/internal/settings"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

type fakeSettings struct {
	strict bool
}

func (f *fakeSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return &settings.Settings{ApplyStrictUserPermissions: f.strict}, nil
}

func (f *fakeSettings) Update(ctx context.Context, s *settings.Settings) error {
	f.strict = s.ApplyStrictUserPermissions
	return nil
}

// fakeGrants is an in-memory grant.Repository with the same filter
// semantics as the gorm implementation.
type fakeGrants struct {
	grants     []*grant.Grant
	failCreate bool
}

func (f *fakeGrants) Create(ctx context.Context, g *grant.Grant) error {
	if f.failCreate {
		return fmt.Errorf("create failed")
	}
	cp := *g
	f.grants = append(f.grants, &cp)
	return nil
}

func (f *fakeGrants) List(ctx context.Context, flt grant.Filter) ([]*grant.Grant, error) {
	var out []*grant.Grant
	for _, g := range f.grants {
		if matchGrant(g, flt) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrants) DeleteMatching(ctx context.Context, flt grant.Filter) (int64, error) {
	var kept []*grant.Grant
	var deleted int64
	for _, g := range f.grants {
		if matchGrant(g, flt) {
			deleted++
			continue
		}
		kept = append(kept, g)
	}
	f.grants = kept
	return deleted, nil
}

func matchGrant(g *grant.Grant, f grant.Filter) bool {
	if f.User != "" && g.User != f.User {
		return false
	}
	if f.Allow != "" && g.Allow != f.Allow {
		return false
	}
	if f.ForValue != "" && g.ForValue != f.ForValue {
		return false
	}
	if f.OwnerDocument != "" && g.OwnerDocument != f.OwnerDocument {
		return false
	}
	if f.ApplyToAllDoctypes != nil && g.ApplyToAllDoctypes != *f.ApplyToAllDoctypes {
		return false
	}
	if f.ApplicableFor != nil && g.ApplicableFor != *f.ApplicableFor {
		return false
	}
	return true
}

type fakeDocs struct {
	docs map[string]*Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]*Document)}
}

func (f *fakeDocs) Create(ctx context.Context, d *Document) error {
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeDocs) Get(ctx context.Context, id string) (*Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "mapping not found", nil)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) List(ctx context.Context) ([]*Document, error) {
	var out []*Document
	for _, d := range f.docs {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDocs) Update(ctx context.Context, d *Document) error {
	if _, ok := f.docs[d.ID]; !ok {
		return cerr.NewError(cerr.NotFound, "mapping not found", nil)
	}
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

type fakeDirectory struct {
	byRole map[string][]string
}

func (f *fakeDirectory) UsersWithRoles(ctx context.Context, roles []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, role := range roles {
		for _, user := range f.byRole[role] {
			if _, ok := seen[user]; ok {
				continue
			}
			seen[user] = struct{}{}
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Search(ctx context.Context, txt string, roles []string, start, pageLen int) ([]directory.Match, error) {
	return nil, nil
}

func (f *fakeDirectory) CreateUser(ctx context.Context, u *directory.User) error {
	return nil
}

func (f *fakeDirectory) AssignRole(ctx context.Context, a *directory.RoleAssignment) error {
	return nil
}

type notification struct {
	documentID string
	user       string
	reason     string
}

type fakeNotifier struct {
	calls []notification
}

func (f *fakeNotifier) PermissionsChanged(ctx context.Context, documentID, user, reason string) {
	f.calls = append(f.calls, notification{documentID: documentID, user: user, reason: reason})
}
