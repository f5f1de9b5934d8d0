package selection

import (
	"context"
	"log/slog"
)

// Cleaner drops the temporary objects of a selection by calling the clear
// procedure with schema, table and token.
type Cleaner struct {
	gw        Gateway
	procedure string
	logger    *slog.Logger
}

// NewCleaner creates a Cleaner calling the named clear procedure.
func NewCleaner(gw Gateway, procedure string, logger *slog.Logger) *Cleaner {
	if procedure == "" {
		procedure = DefaultClearProcedure
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{gw: gw, procedure: procedure, logger: logger}
}

// Clear invokes the clear procedure. Failure is returned as KindCleanup and
// is best-effort from the caller's point of view.
func (c *Cleaner) Clear(ctx context.Context, req Request) error {
	base, err := req.BaseTable()
	if err != nil {
		return NewError(KindCleanup, "clear", err)
	}
	args := []any{req.Schema, base, req.CallerToken}
	c.logger.Debug("calling clear procedure", "procedure", c.procedure, "table", base)
	if err := c.gw.CallProcedure(ctx, c.procedure, args); err != nil {
		return NewError(KindCleanup, "call "+c.procedure, err)
	}
	return nil
}
