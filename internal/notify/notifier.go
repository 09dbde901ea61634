// Package notify carries permission-change signals out of the
// reconciliation path: cache invalidation, event bus fan-out and Web Push.
package notify

import "context"

// Reasons passed along with a PermissionsChanged signal.
const (
	ReasonApplied         = "applied"
	ReasonRevoked         = "revoked"
	ReasonDocumentDeleted = "document_deleted"
)

// Notifier receives one signal per affected user after a mapping save,
// apply or delete has fully succeeded. Implementations must tolerate being
// called outside any transaction; the caller guarantees the grant mutations
// are already durable.
type Notifier interface {
	PermissionsChanged(ctx context.Context, documentID, user, reason string)
}
