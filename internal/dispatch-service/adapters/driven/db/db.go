package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"haul-dispatch/internal/config"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/mylogger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

type DB struct {
	cfg   *config.DBconfig
	mylog mylogger.Logger
	Pool  *pgxpool.Pool
}

// New opens the pool, retrying while the database comes up.
func New(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DB, error) {
	d := &DB{
		cfg:   dbCfg,
		mylog: mylog,
	}

	attempts := max(dbCfg.MaxRetries, 1)
	var err error
	for i := 1; i <= attempts; i++ {
		if err = d.connect(ctx); err == nil {
			return d, nil
		}
		mylog.Warn("database not ready", "attempt", i, "max_attempts", attempts, "error", err.Error())
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("%w: %v", myerrors.ErrDBConnect, err)
}

func (d *DB) Close() error {
	if d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}

// IsAlive pings the DB to verify it's responsive
func (d *DB) IsAlive(ctx context.Context) error {
	if d.Pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	if err := d.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (d *DB) connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.cfg.User,
		d.cfg.Password,
		d.cfg.Host,
		d.cfg.Port,
		d.cfg.Database,
	))
	if err != nil {
		return fmt.Errorf("unable to parse connection string: %w", err)
	}
	if d.cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(d.cfg.MaxConns)
	}
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	d.Pool = pool
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return myerrors.NotFound(entity, id)
	}
	return err
}

func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
