// Package clock provides the default, real-time implementations of
// domain.Clock and domain.RandomID. Tests inject their own fakes directly
// against the domain interfaces rather than through this package.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Real is the production domain.Clock.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// UUID is the production domain.RandomID, backed by google/uuid the same way
// the teacher repo mints session and report identifiers.
type UUID struct{}

// NewID returns a new random UUID string.
func (UUID) NewID() string { return uuid.NewString() }
