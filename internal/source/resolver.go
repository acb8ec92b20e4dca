package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-embed/internal/apperrors"
	"github.com/stanstork/stratum-embed/internal/models"
	"github.com/stanstork/stratum-embed/internal/secrets"
)

const DefaultConnectTimeout = 10 * time.Second

// Querier is the read side of a live connection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Handle is a live, explicitly closed connection to an external database.
type Handle interface {
	Querier
	Close() error
	Dialect() Dialect
}

// Opener opens a database/sql handle; sql.Open in production.
type Opener func(driverName, dsn string) (*sql.DB, error)

type conn struct {
	*sql.DB
	dialect Dialect
}

func (c *conn) Dialect() Dialect { return c.dialect }

// Resolver turns stored connection descriptors into live handles.
type Resolver struct {
	secrets        *secrets.Resolver
	open           Opener
	connectTimeout time.Duration
	logger         zerolog.Logger
}

func NewResolver(sec *secrets.Resolver, connectTimeout time.Duration, logger zerolog.Logger) *Resolver {
	if sec == nil {
		sec = secrets.NewResolver("", nil)
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Resolver{
		secrets:        sec,
		open:           sql.Open,
		connectTimeout: connectTimeout,
		logger:         logger.With().Str("component", "connection_resolver").Logger(),
	}
}

// WithOpener replaces the function used to open handles.
func (r *Resolver) WithOpener(open Opener) *Resolver {
	r.open = open
	return r
}

// Connect validates the protocol, resolves the password reference, opens the
// handle and pings it. The caller owns the returned handle.
func (r *Resolver) Connect(ctx context.Context, dc models.DatabaseConnection) (Handle, error) {
	dialect, err := DialectFor(dc.Type)
	if err != nil {
		return nil, err
	}

	pw := r.secrets.Resolve(dc.Password)
	if pw.Missing() {
		// Existing behavior: an unset reference degrades to an empty password.
		r.logger.Warn().
			Str("connection_id", dc.ID).
			Str("variable", pw.Ref).
			Msg("password reference is not set, connecting with empty password")
	}

	dsn, err := dialect.DSN(dc.BuildConnString(dialect.Protocol(), pw.Value))
	if err != nil {
		return nil, apperrors.Connection(err)
	}

	db, err := r.open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, apperrors.Connection(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			r.logger.Debug().Err(cerr).Str("connection_id", dc.ID).Msg("failed to close unreachable source")
		}
		return nil, apperrors.Connection(err)
	}

	r.logger.Info().
		Str("connection_id", dc.ID).
		Str("protocol", string(dialect.Protocol())).
		Str("host", dc.Host).
		Msg("connected to source database")

	return &conn{DB: db, dialect: dialect}, nil
}
