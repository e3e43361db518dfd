package reminder

import (
	"context"
	"fmt"

	"github.com/dukerupert/cadence/internal/websocket"
)

// Broadcaster is satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// HubNotifier delivers reminders to every connected browser as a
// "reminder_due" message.
type HubNotifier struct {
	hub Broadcaster
}

func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.hub.Broadcast(websocket.NewMessage("reminder", "due", r.EventID, map[string]any{
		"title":            r.Title,
		"occurrence_start": r.OccurrenceStart,
		"body":             fmt.Sprintf("%s starts in %d minutes", r.Title, r.LeadTimeMinutes),
	}))
	return nil
}
