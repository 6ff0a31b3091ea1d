// Package surface defines the externally hosted message-surface collaborator
// the core consumes but does not implement — the chat transport's send/edit/
// delete API.
package surface

import "context"

// Ref is an opaque handle a Surface issues for a sent message, later used
// to address edits.
type Ref any

// EditOutcome is the result of attempting to edit a previously published
// surface object.
type EditOutcome int

const (
	// EditOK means the edit applied.
	EditOK EditOutcome = iota
	// EditGone means the target object was deleted; terminal for the
	// Session that owns it.
	EditGone
	// EditErr means the edit failed transiently; callers log and swallow,
	// the next tick retries.
	EditErr
)

// Surface is the collaborator interface the Update Coalescer drives. The
// chat transport that implements it is deliberately out of this core's
// scope.
type Surface interface {
	// Send publishes new content and returns a Ref to it.
	Send(ctx context.Context, content string) (Ref, error)
	// Edit replaces the content of a previously published object.
	Edit(ctx context.Context, ref Ref, content string) (EditOutcome, error)
	// Delete removes a message — used for user-input cleanup, best-effort.
	Delete(ctx context.Context, ref Ref) error
}
