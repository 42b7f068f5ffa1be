package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/metrics"
)

// DefaultLimit caps results when the caller passes no limit
const DefaultLimit = 10

// Suggester returns remote name suggestions for a query
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]string, error)
}

// Lookup searches the local catalog and falls back to the remote suggester
// only when the catalog has no match. Remote failures are logged and never
// returned.
type Lookup struct {
	catalog *Catalog
	remote  Suggester
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewLookup creates a lookup service; remote may be nil
func NewLookup(catalog *Catalog, remote Suggester, logger *zap.Logger, m *metrics.Metrics) *Lookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lookup{catalog: catalog, remote: remote, logger: logger, metrics: m}
}

// Search returns up to limit candidates for query
func (l *Lookup) Search(ctx context.Context, query string, limit int) []Medicine {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := strings.TrimSpace(query)
	if len(q) < MinQueryLength {
		return []Medicine{}
	}

	local := l.catalog.Search(q, limit)
	if len(local) > 0 || l.remote == nil {
		l.metrics.RecordLookup("local", nil)
		return local
	}

	names, err := l.remote.Suggest(ctx, q)
	l.metrics.RecordLookup("remote", err)
	if err != nil {
		l.logger.Warn("Remote medicine lookup failed, using local results",
			zap.String("query", q),
			zap.Error(apperrors.WrapAs(apperrors.ErrLookupFailed, err)),
		)
		return local
	}

	out := make([]Medicine, 0, len(names))
	for _, name := range names {
		if len(out) == limit {
			break
		}
		out = append(out, Medicine{ID: Slug(name), Name: name})
	}
	return out
}
