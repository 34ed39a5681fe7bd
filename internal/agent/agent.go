// Package agent defines the boundary to the conversational model that
// turns free-form chat messages into calendar tool invocations. The
// model itself is an external collaborator; this package only fixes the
// contract the bot loop programs against.
package agent

import (
	"context"

	"github.com/velikanov/calsec/internal/auth"
)

// Responder produces a reply to a user's free-form message. An
// implementation is expected to drive an LLM with the calendar tools
// registered for the given user and return the final textual answer.
type Responder interface {
	Respond(ctx context.Context, user auth.UserID, text string) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, user auth.UserID, text string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, user auth.UserID, text string) (string, error) {
	return f(ctx, user, text)
}
