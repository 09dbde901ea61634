package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dhwaniris/permsync/internal/eventbus"
)

// Dispatcher bridges bus events to Web Push so administrators hear about
// permission changes without keeping a browser tab open.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventTypePermissionsUpdated {
				d.handlePermissionsUpdated(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handlePermissionsUpdated(ctx context.Context, event *eventbus.Event) {
	reason := event.Metadata["reason"]
	d.sender.SendToAll(ctx, &NotificationPayload{
		Title: "User Permissions Updated",
		Body:  fmt.Sprintf("Permissions for %s changed (%s)", event.User, reason),
		Tag:   "permissions-" + event.User,
	})
}
