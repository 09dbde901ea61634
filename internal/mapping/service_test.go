package mapping

import (
	"context"
	"testing"

	"github.com/dhwaniris/permsync/internal/eventbus"
	"github.com/dhwaniris/permsync/internal/notify"
)

type serviceFixture struct {
	service   *Service
	docs      *fakeDocs
	grants    *fakeGrants
	directory *fakeDirectory
	settings  *fakeSettings
	notifier  *fakeNotifier
	bus       *eventbus.Bus
}

func newServiceFixture() *serviceFixture {
	docs := newFakeDocs()
	grants := &fakeGrants{}
	dir := &fakeDirectory{byRole: map[string][]string{}}
	sys := &fakeSettings{strict: true}
	notifier := &fakeNotifier{}
	bus := eventbus.New()

	return &serviceFixture{
		service:   NewService(docs, dir, NewValidator(sys), NewReconciler(grants), notifier, bus),
		docs:      docs,
		grants:    grants,
		directory: dir,
		settings:  sys,
		notifier:  notifier,
		bus:       bus,
	}
}

func (f *serviceFixture) notifications(reason string) []notification {
	var out []notification
	for _, n := range f.notifier.calls {
		if n.reason == reason {
			out = append(out, n)
		}
	}
	return out
}

func TestServiceCreate(t *testing.T) {
	f := newServiceFixture()
	doc := &Document{
		Users: []string{"alice@example.com"},
		Rows:  []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}

	created, result, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if created.ID == "" {
		t.Error("created document has no ID")
	}
	if result.AppliedCount != 1 {
		t.Errorf("AppliedCount = %d, want 1", result.AppliedCount)
	}
	if len(f.grants.grants) != 1 {
		t.Fatalf("stored grants = %d, want 1", len(f.grants.grants))
	}
	if f.grants.grants[0].OwnerDocument != created.ID {
		t.Errorf("grant owner = %q, want %q", f.grants.grants[0].OwnerDocument, created.ID)
	}
	if _, err := f.docs.Get(context.Background(), created.ID); err != nil {
		t.Errorf("document was not persisted: %v", err)
	}

	applied := f.notifications(notify.ReasonApplied)
	if len(applied) != 1 || applied[0].user != "alice@example.com" {
		t.Errorf("applied notifications = %v, want one for alice", applied)
	}
}

func TestServiceCreateStrictFlagOffPersistsNothing(t *testing.T) {
	f := newServiceFixture()
	f.settings.strict = false
	doc := &Document{
		Users: []string{"alice@example.com"},
		Rows:  []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}

	if _, _, err := f.service.Create(context.Background(), doc); err == nil {
		t.Fatal("Create() = nil, want error with strict flag off")
	}
	if len(f.grants.grants) != 0 {
		t.Errorf("stored grants = %d, want 0", len(f.grants.grants))
	}
	if docs, _ := f.docs.List(context.Background()); len(docs) != 0 {
		t.Errorf("stored documents = %d, want 0", len(docs))
	}
	if len(f.notifier.calls) != 0 {
		t.Errorf("notifications = %v, want none on failed save", f.notifier.calls)
	}
}

func TestServiceCreateRoleModeMaterializesUsers(t *testing.T) {
	f := newServiceFixture()
	f.directory.byRole["Accounts Manager"] = []string{"alice@example.com", "bob@example.com"}
	doc := &Document{
		ApplyToRole: true,
		Roles:       []string{"Accounts Manager"},
		Rows:        []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}

	created, result, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if len(created.Users) != 2 {
		t.Errorf("Users = %v, want both role holders", created.Users)
	}
	if result.AppliedCount != 2 {
		t.Errorf("AppliedCount = %d, want 2", result.AppliedCount)
	}
}

func TestServiceCreateRoleModeNoHolders(t *testing.T) {
	f := newServiceFixture()
	doc := &Document{
		ApplyToRole: true,
		Roles:       []string{"Ghost Role"},
		Rows:        []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}

	if _, _, err := f.service.Create(context.Background(), doc); err == nil {
		t.Fatal("Create() = nil, want error when roles resolve to no users")
	}
}

func TestServiceUpdateRemovedUserLosesGrants(t *testing.T) {
	f := newServiceFixture()
	doc := &Document{
		Users: []string{"alice@example.com", "bob@example.com"},
		Rows:  []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}
	created, _, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	f.notifier.calls = nil

	updated := &Document{
		ID:    created.ID,
		Users: []string{"alice@example.com"},
		Rows:  created.Rows,
	}
	if _, _, err := f.service.Update(context.Background(), updated); err != nil {
		t.Fatalf("Update() = %v", err)
	}

	for _, g := range f.grants.grants {
		if g.User == "bob@example.com" {
			t.Error("removed user still holds a grant")
		}
	}
	revoked := f.notifications(notify.ReasonRevoked)
	if len(revoked) != 1 || revoked[0].user != "bob@example.com" {
		t.Errorf("revoked notifications = %v, want one for bob", revoked)
	}
}

func TestServiceUpdateRetractsEditedRows(t *testing.T) {
	f := newServiceFixture()
	doc := &Document{
		Users: []string{"alice@example.com"},
		Rows:  []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}
	created, _, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	updated := &Document{
		ID:    created.ID,
		Users: created.Users,
		Rows:  []Row{{Allow: "Company", ForValue: "Globex", ApplyToAllDoctypes: true}},
	}
	if _, _, err := f.service.Update(context.Background(), updated); err != nil {
		t.Fatalf("Update() = %v", err)
	}

	if len(f.grants.grants) != 1 {
		t.Fatalf("stored grants = %d, want 1", len(f.grants.grants))
	}
	if f.grants.grants[0].ForValue != "Globex" {
		t.Errorf("remaining grant for_value = %q, want Globex", f.grants.grants[0].ForValue)
	}
}

func TestServiceDelete(t *testing.T) {
	f := newServiceFixture()
	doc := &Document{
		Users: []string{"alice@example.com"},
		Rows:  []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}
	created, _, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	f.notifier.calls = nil

	if err := f.service.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if len(f.grants.grants) != 0 {
		t.Errorf("stored grants = %d, want 0", len(f.grants.grants))
	}
	if _, err := f.docs.Get(context.Background(), created.ID); err == nil {
		t.Error("document still exists after delete")
	}

	deleted := f.notifications(notify.ReasonDocumentDeleted)
	if len(deleted) != 1 || deleted[0].user != "alice@example.com" {
		t.Errorf("deleted notifications = %v, want one for alice", deleted)
	}
}

func TestServiceDeleteNotifiesOnDemandGrantees(t *testing.T) {
	f := newServiceFixture()
	f.directory.byRole["Accounts Manager"] = []string{"alice@example.com"}
	doc := &Document{
		ApplyToRole: true,
		Roles:       []string{"Accounts Manager"},
		Rows:        []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}
	created, _, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	// carol gains the role after the save and is granted by an on-demand
	// apply, which never rewrites the stored user list.
	f.directory.byRole["Accounts Manager"] = []string{"alice@example.com", "carol@example.com"}
	if _, err := f.service.Apply(context.Background(), created.ID); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	f.notifier.calls = nil

	if err := f.service.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if len(f.grants.grants) != 0 {
		t.Fatalf("stored grants = %d, want 0", len(f.grants.grants))
	}

	deleted := f.notifications(notify.ReasonDocumentDeleted)
	users := make(map[string]bool, len(deleted))
	for _, n := range deleted {
		users[n.user] = true
	}
	if len(deleted) != 2 || !users["alice@example.com"] || !users["carol@example.com"] {
		t.Errorf("deleted notifications = %v, want alice and carol", deleted)
	}
}

func TestServiceApplyReresolvesRoles(t *testing.T) {
	f := newServiceFixture()
	f.directory.byRole["Accounts Manager"] = []string{"alice@example.com"}
	doc := &Document{
		ApplyToRole: true,
		Roles:       []string{"Accounts Manager"},
		Rows:        []Row{{Allow: "Company", ForValue: "ACME", ApplyToAllDoctypes: true}},
	}
	created, _, err := f.service.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	// A new user gains the role after the save; on-demand apply picks it up.
	f.directory.byRole["Accounts Manager"] = []string{"alice@example.com", "carol@example.com"}

	result, err := f.service.Apply(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if result.AppliedCount != 1 {
		t.Errorf("AppliedCount = %d, want 1 (only carol's grant is new)", result.AppliedCount)
	}

	var carolHas bool
	for _, g := range f.grants.grants {
		if g.User == "carol@example.com" {
			carolHas = true
		}
	}
	if !carolHas {
		t.Error("new role holder did not receive a grant")
	}
}
