package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dhwaniris/permsync/internal/directory"
	"github.com/dhwaniris/permsync/internal/eventbus"
	"github.com/dhwaniris/permsync/internal/notify"
	"github.com/dhwaniris/permsync/pkg/cerr"
)

// Service orchestrates the document lifecycle: resolve the effective user
// list, validate, persist, reconcile the grant table and signal affected
// users. Notifications fire only after the save path has fully succeeded.
type Service struct {
	docs       Repository
	directory  directory.Repository
	validator  *Validator
	reconciler *Reconciler
	notifier   notify.Notifier
	bus        *eventbus.Bus
}

func NewService(
	docs Repository,
	directoryRepo directory.Repository,
	validator *Validator,
	reconciler *Reconciler,
	notifier notify.Notifier,
	bus *eventbus.Bus,
) *Service {
	return &Service{
		docs:       docs,
		directory:  directoryRepo,
		validator:  validator,
		reconciler: reconciler,
		notifier:   notifier,
		bus:        bus,
	}
}

// EffectiveUsers resolves the user list a document applies to. In role mode
// membership is re-resolved on every call so on-demand re-syncs pick up
// role changes since the last save.
func (s *Service) EffectiveUsers(ctx context.Context, doc *Document) ([]string, error) {
	if !doc.ApplyToRole {
		return doc.Users, nil
	}
	if len(doc.Roles) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "no roles selected to apply user permissions", nil)
	}
	users, err := s.directory.UsersWithRoles(ctx, doc.Roles)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "selected roles resolve to no users", nil)
	}
	return users, nil
}

// Create validates and persists a new document, then applies its grants.
func (s *Service) Create(ctx context.Context, doc *Document) (*Document, *ApplyResult, error) {
	users, err := s.prepare(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	doc.ID = ulid.Make().String()
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}

	result := s.reconciler.Apply(ctx, doc, users)
	s.afterChange(ctx, doc, users, nil, result)
	return doc, result, nil
}

// Update re-validates the document, retracts grants for removed users and
// for rows that changed identity, persists the new version and re-applies.
func (s *Service) Update(ctx context.Context, doc *Document) (*Document, *ApplyResult, error) {
	prev, err := s.docs.Get(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}

	users, err := s.prepare(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	// Users dropped from the document lose every grant it owned for them.
	removed := subtract(prev.Users, users)
	if err := s.reconciler.RemoveForUsers(ctx, doc.ID, removed); err != nil {
		return nil, nil, err
	}
	// Rows edited in place change identity; their old grants are retracted
	// eagerly instead of lingering until the next full re-sync.
	if err := s.reconciler.RetractStaleRows(ctx, prev, doc); err != nil {
		return nil, nil, err
	}

	doc.CreatedAt = prev.CreatedAt
	doc.UpdatedAt = time.Now()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, nil, err
	}

	result := s.reconciler.Apply(ctx, doc, users)
	s.afterChange(ctx, doc, users, removed, result)
	return doc, result, nil
}

// Apply re-runs reconciliation for an existing document on demand.
func (s *Service) Apply(ctx context.Context, id string) (*ApplyResult, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.EffectiveUsers(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := s.reconciler.Apply(ctx, doc, users)
	s.afterChange(ctx, doc, users, nil, result)
	return result, nil
}

// Delete removes every grant the document owns, then the document itself.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	// The owned grants can cover users beyond the stored list: on-demand
	// applies re-resolve role membership without rewriting Users.
	affected, err := s.reconciler.DeleteAll(ctx, doc)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}

	for _, user := range union(doc.Users, affected) {
		s.notifier.PermissionsChanged(ctx, doc.ID, user, notify.ReasonDocumentDeleted)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.docs.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Document, error) {
	return s.docs.List(ctx)
}

// prepare resolves the effective user list, validates the document against
// it and materializes the list back onto Users in role mode.
func (s *Service) prepare(ctx context.Context, doc *Document) ([]string, error) {
	users, err := s.EffectiveUsers(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "no users selected", nil)
	}
	if err := s.validator.Validate(ctx, doc, users); err != nil {
		return nil, err
	}
	if doc.ApplyToRole {
		doc.Users = users
	}
	return users, nil
}

// afterChange signals every affected user and publishes the apply summary.
// Runs only after grant mutations are durable.
func (s *Service) afterChange(ctx context.Context, doc *Document, users, removed []string, result *ApplyResult) {
	for _, user := range users {
		s.notifier.PermissionsChanged(ctx, doc.ID, user, notify.ReasonApplied)
	}
	for _, user := range removed {
		s.notifier.PermissionsChanged(ctx, doc.ID, user, notify.ReasonRevoked)
	}

	if result.AppliedCount > 0 {
		slog.Info(fmt.Sprintf("applied %d user permission(s)", result.AppliedCount), "mapping_id", doc.ID)
	}
	if len(result.Errors) > 0 {
		slog.Warn("some user permissions could not be applied", "mapping_id", doc.ID, "errors", result.Errors)
	}
	s.bus.PublishNew(eventbus.EventTypeMappingApplied, doc.ID, "", map[string]string{
		"applied_count": strconv.Itoa(result.AppliedCount),
		"error_count":   strconv.Itoa(len(result.Errors)),
	})
}

// union returns a followed by the members of b not already in a.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// subtract returns the members of a not present in b, preserving order.
func subtract(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
