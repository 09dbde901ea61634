package notify

import (
	"context"

	"github.com/dhwaniris/permsync/internal/eventbus"
	"github.com/dhwaniris/permsync/internal/grant"
)

// BusNotifier drops the user's cached grant view and publishes a
// permissions.updated event for realtime consumers.
type BusNotifier struct {
	bus   *eventbus.Bus
	cache *grant.Cache
}

func NewBusNotifier(bus *eventbus.Bus, cache *grant.Cache) *BusNotifier {
	return &BusNotifier{bus: bus, cache: cache}
}

func (n *BusNotifier) PermissionsChanged(_ context.Context, documentID, user, reason string) {
	n.cache.Invalidate(user)
	n.bus.PublishNew(eventbus.EventTypePermissionsUpdated, documentID, user, map[string]string{
		"reason": reason,
	})
}
