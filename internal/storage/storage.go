// Package storage wraps the pgx pool the same way the teacher's
// internal/db does (OTel-instrumented QueryRow/Query/Exec/Begin,
// BeforeAcquire setting a session GUC, AfterRelease tracking an
// active-connections gauge), adapted from the teacher's row-level-
// security-by-user_id to set app.actor_did — spacepeer's callers are
// identified by DID, not a uuid.UUID primary key.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/roomyhq/spacepeer/internal/contextkey"

	"github.com/jackc/pgx/v5"
	pgxpgconn "github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	dbLatency           metric.Float64Histogram
	dbActiveConnections metric.Int64UpDownCounter
)

// Store wraps a pgxpool.Pool with tracing and metrics.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn, instrumenting acquisition
// and every subsequent operation.
func New(ctx context.Context, dsn string) (*Store, error) {
	var err error

	meter := otel.Meter("storage-client")
	dbLatency, err = meter.Float64Histogram("storage.query.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.query.latency instrument: %w", err)
	}
	dbActiveConnections, err = meter.Int64UpDownCounter("storage.active.connections", metric.WithUnit("connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.active.connections instrument: %w", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	config.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		_, span := otel.Tracer("storage-client").Start(ctx, "storage.connection.acquire")
		defer span.End()
		dbActiveConnections.Add(ctx, 1)

		actorDID, ok := ctx.Value(contextkey.ContextKeyActorID).(string)
		if ok && actorDID != "" {
			if _, err := conn.Exec(ctx, "SELECT set_config('app.actor_did', $1, false)", actorDID); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to set app.actor_did for RLS")
			}
		}
		return true
	}

	config.AfterRelease = func(conn *pgx.Conn) bool {
		dbActiveConnections.Add(context.Background(), -1)
		return true
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	pingCtx, span := otel.Tracer("storage-client").Start(ctx, "storage.ping")
	defer span.End()
	if err := pool.Ping(pingCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ping storage")
		return nil, fmt.Errorf("failed to ping storage: %w", err)
	}
	span.SetStatus(codes.Ok, "storage connected")

	return &Store{pool: pool}, nil
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Health(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	start := time.Now()
	ctx, span := otel.Tracer("storage-client").Start(ctx, "storage.query.row")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("storage.query", query)))
		span.End()
	}()
	return s.pool.QueryRow(ctx, query, args...)
}

func (s *Store) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	ctx, span := otel.Tracer("storage-client").Start(ctx, "storage.query")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("storage.query", query)))
		span.End()
	}()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage query failed")
	}
	return rows, err
}

func (s *Store) Exec(ctx context.Context, query string, args ...interface{}) (pgxpgconn.CommandTag, error) {
	start := time.Now()
	ctx, span := otel.Tracer("storage-client").Start(ctx, "storage.exec")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("storage.query", query)))
		span.End()
	}()
	cmdTag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage exec failed")
	}
	return cmdTag, err
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	start := time.Now()
	ctx, span := otel.Tracer("storage-client").Start(ctx, "storage.transaction.begin")
	defer func() {
		dbLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("storage.operation", "begin")))
		span.End()
	}()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
	}
	return tx, err
}
