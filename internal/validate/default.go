package validate

import (
	"errors"
	"sync"
)

// ErrDefaultSealed is returned by SetDefault once Default has been read.
var ErrDefaultSealed = errors.New("default validator already in use")

var std struct {
	once    sync.Once
	mu      sync.Mutex
	sealed  bool
	pending *Validator
	v       *Validator
}

// Default returns the process-wide Validator.
//
// The first call freezes it: the Validator installed by SetDefault, or an
// empty one that rejects every type. Prefer passing a Validator explicitly.
func Default() *Validator {
	std.once.Do(func() {
		std.mu.Lock()
		defer std.mu.Unlock()
		std.sealed = true
		std.v = std.pending
		if std.v == nil {
			std.v = New(nil)
		}
	})
	return std.v
}

// SetDefault installs v as the process-wide Validator. It fails with
// ErrDefaultSealed after the first call to Default.
func SetDefault(v *Validator) error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.sealed {
		return ErrDefaultSealed
	}
	std.pending = v
	return nil
}
