package blockchain

import (
	"errors"
	"time"
)

var ErrNoBlock = errors.New("no block header received yet")

// Clock supplies the logical time claims are evaluated at.
type Clock interface {
	Now() (time.Time, error)
}

// SystemClock reads wall time. Used when no chain endpoint is configured.
type SystemClock struct{}

func (SystemClock) Now() (time.Time, error) {
	return time.Now().UTC(), nil
}
