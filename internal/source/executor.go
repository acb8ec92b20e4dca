package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
)

const DefaultPageSize = 1000

// ResultSet is the complete, ordered output of a query. Each row is
// positionally aligned with Columns; SQL NULL is a nil value.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Executor runs a user query page by page with LIMIT/OFFSET.
type Executor struct {
	pageSize int
	logger   zerolog.Logger
}

func NewExecutor(pageSize int, logger zerolog.Logger) *Executor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Executor{
		pageSize: pageSize,
		logger:   logger.With().Str("component", "query_executor").Logger(),
	}
}

// PageQuery trims the query, drops a trailing semicolon and appends the page
// clause on its own line so a trailing line comment cannot swallow it.
func PageQuery(query string, limit, offset int) string {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	return fmt.Sprintf("%s\nLIMIT %d OFFSET %d", q, limit, offset)
}

// FetchAll accumulates every page. It stops on an empty page or on a page
// shorter than the page size, so a page of exactly pageSize rows always costs
// one more round trip.
func (e *Executor) FetchAll(ctx context.Context, q Querier, query string) (*ResultSet, error) {
	rs := &ResultSet{}
	pages := 0
	for offset := 0; ; offset += e.pageSize {
		n, err := e.fetchPage(ctx, q, PageQuery(query, e.pageSize, offset), rs)
		if err != nil {
			e.logger.Error().Err(err).Int("offset", offset).Msg("page query failed")
			return nil, apperrors.QueryExecution(offset, err)
		}
		pages++
		e.logger.Debug().Int("offset", offset).Int("rows", n).Msg("fetched page")
		if n == 0 || n < e.pageSize {
			break
		}
	}
	e.logger.Info().Int("rows", rs.Len()).Int("pages", pages).Msg("query complete")
	return rs, nil
}

func (e *Executor) fetchPage(ctx context.Context, q Querier, query string, rs *ResultSet) (int, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	if rs.Columns == nil {
		rs.Columns = cols
	}

	n := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		for i, v := range values {
			// Drivers reuse []byte buffers between rows.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
		n++
	}
	return n, rows.Err()
}
