package repository

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// PostPhasePolicy decides what a post-phase violation does to the write.
type PostPhasePolicy string

const (
	// PostRollback runs post rules inside the write transaction and rolls
	// the write back on violation.
	PostRollback PostPhasePolicy = "rollback"

	// PostAdvisory commits the write first; a post violation is reported
	// as *CommittedError.
	PostAdvisory PostPhasePolicy = "advisory"
)

// ParsePostPhasePolicy parses "rollback" or "advisory". Empty is rollback.
func ParsePostPhasePolicy(s string) (PostPhasePolicy, error) {
	switch PostPhasePolicy(s) {
	case "", PostRollback:
		return PostRollback, nil
	case PostAdvisory:
		return PostAdvisory, nil
	}
	return "", fmt.Errorf("invalid post phase policy %q (want rollback or advisory)", s)
}

// Flags switch pipeline stages off for a single call.
type Flags struct {
	ValidateIntegrity bool
	PreValidate       bool
	PostValidate      bool
}

// DefaultFlags enables every stage.
func DefaultFlags() Flags {
	return Flags{ValidateIntegrity: true, PreValidate: true, PostValidate: true}
}

// IDGenerator produces call correlation ids.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs.
type IDGenerator interface {
	Next() string
}

// UUIDv7Generator generates time-sortable UUIDv7 call ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Next returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Next() string {
	return uuid.Must(uuid.NewV7()).String()
}

type options struct {
	policy PostPhasePolicy
	ids    IDGenerator
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*options)

// WithPostPhase sets the post-phase policy. Default: PostRollback.
func WithPostPhase(p PostPhasePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithIDGenerator sets the call id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
