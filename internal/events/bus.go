package events

import "context"

// Publisher pushes notifications onto the bus, routed by event type.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}
