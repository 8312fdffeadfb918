package session

import (
	"context"
	"time"
)

// DefaultTTL is how long an idle session survives. A USSD dial rarely
// outlives a few minutes.
const DefaultTTL = 5 * time.Minute

// Store owns sessions. Acquire returns the session for key (a fresh one with
// the given initial state when the key is unseen or expired) and holds the
// key's lock until release is called, so one session never sees two
// concurrent requests. Save persists the mutated session; call it before
// release.
type Store interface {
	Acquire(ctx context.Context, key string, initial State) (sess *Session, release func(), err error)
	Save(ctx context.Context, sess *Session) error
}
