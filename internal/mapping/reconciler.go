package mapping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dhwaniris/permsync/internal/grant"
)

// ApplyResult is the outcome of one apply pass. Errors holds one
// "{user}: {allow}/{for_value}" entry per merged entry that failed;
// failures do not abort the rest of the pass.
type ApplyResult struct {
	AppliedCount int      `json:"applied_count"`
	Errors       []string `json:"errors"`
}

// Reconciler diffs declared grants against the grant table and converges
// it: missing grants are created, already-applied ones are skipped, and
// grants owned by a document are retracted when their declaration goes away.
type Reconciler struct {
	grants grant.Repository
}

func NewReconciler(grants grant.Repository) *Reconciler {
	return &Reconciler{grants: grants}
}

// mergedEntry accumulates every row contribution for one
// (user, allow, for_value) key. Scope starts global; one scoped row forces
// the whole entry scoped. The last contributing row wins is_default and
// hide_descendants.
type mergedEntry struct {
	user               string
	allow              string
	forValue           string
	applyToAllDoctypes bool
	isDefault          bool
	hideDescendants    bool
	applicableFor      []string
}

type entryKey struct {
	user     string
	allow    string
	forValue string
}

func mergeEntries(doc *Document, users []string) []*mergedEntry {
	byKey := make(map[entryKey]*mergedEntry)
	var order []entryKey

	for _, row := range doc.Rows {
		for _, user := range users {
			key := entryKey{user: user, allow: row.Allow, forValue: row.ForValue}
			entry, ok := byKey[key]
			if !ok {
				entry = &mergedEntry{
					user:               user,
					allow:              row.Allow,
					forValue:           row.ForValue,
					applyToAllDoctypes: true,
				}
				byKey[key] = entry
				order = append(order, key)
			}
			entry.isDefault = row.IsDefault
			entry.hideDescendants = row.HideDescendants

			if !row.ApplyToAllDoctypes {
				// Scoped dominates: one scoped row forces the merged
				// entry scoped even if another row was global.
				entry.applyToAllDoctypes = false
				if row.ApplicableFor != "" && !contains(entry.applicableFor, row.ApplicableFor) {
					entry.applicableFor = append(entry.applicableFor, row.ApplicableFor)
				}
			}
		}
	}

	entries := make([]*mergedEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, byKey[key])
	}
	return entries
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Apply creates every grant the document declares for the given users that
// does not already exist. Re-invoking with no changes applies nothing and
// returns no errors.
func (r *Reconciler) Apply(ctx context.Context, doc *Document, users []string) *ApplyResult {
	result := &ApplyResult{Errors: []string{}}

	for _, entry := range mergeEntries(doc, users) {
		skip, existing, err := r.alreadyApplied(ctx, entry)
		if err != nil {
			slog.Error("failed to look up existing grants", "user", entry.user, "allow", entry.allow, "for_value", entry.forValue, "error", err)
			result.Errors = append(result.Errors, entryError(entry))
			continue
		}
		if skip {
			continue
		}
		if err := r.createGrants(ctx, doc.ID, entry, existing); err != nil {
			slog.Error("failed to create grant", "user", entry.user, "allow", entry.allow, "for_value", entry.forValue, "error", err)
			result.Errors = append(result.Errors, entryError(entry))
			continue
		}
		result.AppliedCount++
	}
	return result
}

func entryError(e *mergedEntry) string {
	return fmt.Sprintf("%s: %s/%s", e.user, e.allow, e.forValue)
}

// alreadyApplied reports whether the merged entry is fully covered by
// existing grants. For scoped entries the required applicable_for set must
// be a subset of what already exists; anything less is not applied at all
// and the entry is processed in full.
func (r *Reconciler) alreadyApplied(ctx context.Context, entry *mergedEntry) (bool, map[string]struct{}, error) {
	existing, err := r.grants.List(ctx, grant.Filter{
		User:               entry.user,
		Allow:              entry.allow,
		ForValue:           entry.forValue,
		ApplyToAllDoctypes: grant.BoolPtr(entry.applyToAllDoctypes),
	})
	if err != nil {
		return false, nil, err
	}

	if entry.applyToAllDoctypes {
		return len(existing) > 0, nil, nil
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, g := range existing {
		if g.ApplicableFor != "" {
			existingSet[g.ApplicableFor] = struct{}{}
		}
	}
	for _, af := range entry.applicableFor {
		if _, ok := existingSet[af]; !ok {
			return false, existingSet, nil
		}
	}
	return true, existingSet, nil
}

func (r *Reconciler) createGrants(ctx context.Context, docID string, entry *mergedEntry, existing map[string]struct{}) error {
	if entry.applyToAllDoctypes {
		return r.grants.Create(ctx, &grant.Grant{
			User:               entry.user,
			Allow:              entry.allow,
			ForValue:           entry.forValue,
			ApplyToAllDoctypes: true,
			IsDefault:          entry.isDefault,
			HideDescendants:    entry.hideDescendants,
			OwnerDocument:      docID,
		})
	}

	for _, af := range entry.applicableFor {
		if _, ok := existing[af]; ok {
			continue
		}
		err := r.grants.Create(ctx, &grant.Grant{
			User:               entry.user,
			Allow:              entry.allow,
			ForValue:           entry.forValue,
			ApplyToAllDoctypes: false,
			ApplicableFor:      af,
			IsDefault:          entry.isDefault,
			HideDescendants:    entry.hideDescendants,
			OwnerDocument:      docID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every grant the document owns and returns the users
// those grants belonged to, in grant order. Grants an apply pass skipped
// because another document had already created them are untouched.
func (r *Reconciler) DeleteAll(ctx context.Context, doc *Document) ([]string, error) {
	owned, err := r.grants.List(ctx, grant.Filter{OwnerDocument: doc.ID})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(owned))
	users := make([]string, 0, len(owned))
	for _, g := range owned {
		if _, ok := seen[g.User]; ok {
			continue
		}
		seen[g.User] = struct{}{}
		users = append(users, g.User)
	}

	if _, err := r.grants.DeleteMatching(ctx, grant.Filter{OwnerDocument: doc.ID}); err != nil {
		return nil, err
	}
	return users, nil
}

// RemoveForUsers retracts the document's grants for users no longer on it.
func (r *Reconciler) RemoveForUsers(ctx context.Context, docID string, users []string) error {
	for _, user := range users {
		if _, err := r.grants.DeleteMatching(ctx, grant.Filter{
			OwnerDocument: docID,
			User:          user,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RetractStaleRows removes grants owned by the document whose declaring row
// no longer exists in the current version, including rows whose scope or
// applicable_for changed in place.
func (r *Reconciler) RetractStaleRows(ctx context.Context, prev, cur *Document) error {
	current := make(map[rowIdentity]struct{}, len(cur.Rows))
	for _, row := range cur.Rows {
		current[row.identity()] = struct{}{}
	}

	for _, row := range prev.Rows {
		if _, ok := current[row.identity()]; ok {
			continue
		}
		f := grant.Filter{
			OwnerDocument:      prev.ID,
			Allow:              row.Allow,
			ForValue:           row.ForValue,
			ApplyToAllDoctypes: grant.BoolPtr(row.ApplyToAllDoctypes),
		}
		if !row.ApplyToAllDoctypes {
			f.ApplicableFor = grant.StringPtr(row.ApplicableFor)
		}
		if _, err := r.grants.DeleteMatching(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
