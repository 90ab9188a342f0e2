package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/warden/internal/ir"
)

// callLog carries the correlation state of one repository call.
type callLog struct {
	logger *slog.Logger
	id     string
	entity string
	mode   ir.Mode
	ran    []string
}

func (r *Repository[T]) begin(mode ir.Mode) *callLog {
	c := &callLog{
		logger: r.opts.logger,
		id:     r.opts.ids.Next(),
		entity: r.spec.Name,
		mode:   mode,
	}
	c.logger.Debug("call started", "call_id", c.id, "type", c.entity, "mode", mode)
	return c
}

// fail logs a rejected call. Constraint violations and missing ids log at
// Info; anything else logs at Error.
func (c *callLog) fail(stage string, err error) {
	level := slog.LevelError
	if ir.IsConstraintViolation(err) || errors.Is(err, ErrNotFound) {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, "call rejected",
		"call_id", c.id,
		"type", c.entity,
		"mode", c.mode,
		"stage", stage,
		"rules", c.ran,
		"error", err,
	)
}

func (c *callLog) done(msg string, id int64) {
	c.logger.Info(msg,
		"call_id", c.id,
		"type", c.entity,
		"mode", c.mode,
		"id", id,
		"rules", c.ran,
	)
}
