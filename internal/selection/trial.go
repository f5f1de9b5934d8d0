package selection

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultTrialTimeout bounds the trial statement when none is configured.
const DefaultTrialTimeout = 5 * time.Second

// SelectStatement assembles the selection statement from the request
// fragments. When the filter begins with FROM it replaces the FROM clause
// and carries its own WHERE; otherwise the schema-qualified table is used and
// a non-empty filter becomes the WHERE clause.
//
// The columns, group-by and order-by fragments are embedded verbatim.
func SelectStatement(req Request, limit LimitStyle) string {
	columns := strings.TrimSpace(req.Columns)
	limited := hasLeadingKeyword(columns, "TOP") || hasLeadingKeyword(columns, "BOTTOM")

	var b strings.Builder
	b.WriteString("SELECT ")
	if limit == LimitTop && !limited {
		b.WriteString("TOP 1 ")
	}
	b.WriteString(columns)

	filter := strings.TrimSpace(req.Filter)
	if req.FilterIsSource() {
		b.WriteString(" ")
		b.WriteString(filter)
	} else {
		b.WriteString(" FROM ")
		b.WriteString(req.QualifiedTable())
		if filter != "" {
			b.WriteString(" WHERE ")
			b.WriteString(filter)
		}
	}

	if g := strings.TrimSpace(req.GroupBy); g != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(g)
	}
	if o := strings.TrimSpace(req.OrderBy); o != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(o)
	}
	if limit == LimitSuffix && !limited {
		b.WriteString(" LIMIT 1")
	}
	return b.String()
}

// TrialStatement returns the one-row statement used to verify a request.
func TrialStatement(req Request, limit LimitStyle) string {
	return SelectStatement(req, limit)
}

// Verifier runs a bounded trial of the assembled statement.
// It creates no temporary objects.
type Verifier struct {
	gw      Gateway
	timeout time.Duration
	logger  *slog.Logger
}

// NewVerifier creates a Verifier. A non-positive timeout uses
// DefaultTrialTimeout.
func NewVerifier(gw Gateway, timeout time.Duration, logger *slog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTrialTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{gw: gw, timeout: timeout, logger: logger}
}

// Verify executes the trial statement. Any execution error is returned as a
// KindValidation error.
func (v *Verifier) Verify(ctx context.Context, req Request) (string, error) {
	stmt := TrialStatement(req, v.gw.LimitStyle())

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	v.logger.Debug("executing trial statement", "sql", stmt, "timeout", v.timeout)
	if _, err := v.gw.Execute(ctx, stmt); err != nil {
		return stmt, NewError(KindValidation, "trial query", err)
	}
	return stmt, nil
}
