package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"

	"github.com/jackc/pgx/v5"
)

const extensionColumns = `extension_id, job_id, driver_id, additional_hours, additional_cost, status, created_at, resolved_at`

type ExtensionsRepo struct {
	db *DB
}

func NewExtensionsRepo(db *DB) ports.IExtensionsRepo {
	return &ExtensionsRepo{
		db: db,
	}
}

func (xr *ExtensionsRepo) Create(ctx context.Context, e model.TimeExtension) error {
	q := `INSERT INTO time_extensions (` + extensionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := xr.db.Pool.Exec(ctx, q,
		e.ID, e.JobID, e.DriverID, e.AdditionalHours, int64(e.AdditionalCost), string(e.Status), e.CreatedAt, e.ResolvedAt,
	)
	if err != nil {
		if uniqueViolation(err, "time_extensions_one_pending") {
			return fmt.Errorf("job %s: %w", e.JobID, myerrors.ErrExtensionPending)
		}
		return fmt.Errorf("insert time extension: %w", err)
	}
	return nil
}

func (xr *ExtensionsRepo) Get(ctx context.Context, extensionId string) (model.TimeExtension, error) {
	q := `SELECT ` + extensionColumns + ` FROM time_extensions WHERE extension_id = $1`
	e, err := scanExtension(xr.db.Pool.QueryRow(ctx, q, extensionId))
	if err != nil {
		return model.TimeExtension{}, notFound(err, "extension", extensionId)
	}
	return e, nil
}

// Resolve settles a pending request. The job row is locked first so an
// approval and a completion of the same job cannot interleave; approval needs
// the job in progress and adds the cost to its billed total before commit.
func (xr *ExtensionsRepo) Resolve(ctx context.Context, extensionId string, status model.ExtensionStatus, at time.Time) (model.TimeExtension, model.Job, bool, error) {
	tx, err := xr.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.TimeExtension{}, model.Job{}, false, fmt.Errorf("begin resolve: %w", err)
	}
	defer tx.Rollback(ctx) // Safe rollback if not committed

	q0 := `SELECT jobs.status
		FROM jobs JOIN time_extensions x ON x.job_id = jobs.job_id
		WHERE x.extension_id = $1
		FOR UPDATE OF jobs`
	var jobStatus string
	if err := tx.QueryRow(ctx, q0, extensionId).Scan(&jobStatus); err != nil {
		return model.TimeExtension{}, model.Job{}, false, notFound(err, "extension", extensionId)
	}
	if status == model.ExtensionApproved && jobStatus != string(model.JobInProgress) {
		return model.TimeExtension{}, model.Job{}, false, nil
	}

	q1 := `UPDATE time_extensions
		SET status = $2, resolved_at = $3
		WHERE extension_id = $1 AND status = 'pending'
		RETURNING ` + extensionColumns
	e, err := scanExtension(tx.QueryRow(ctx, q1, extensionId, string(status), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TimeExtension{}, model.Job{}, false, nil
		}
		return model.TimeExtension{}, model.Job{}, false, fmt.Errorf("resolve time extension: %w", err)
	}

	var row pgx.Row
	if status == model.ExtensionApproved {
		q2 := `UPDATE jobs SET billed_total = billed_total + $2, updated_at = $3
			WHERE job_id = $1
			RETURNING ` + columns("")
		row = tx.QueryRow(ctx, q2, e.JobID, int64(e.AdditionalCost), at)
	} else {
		row = tx.QueryRow(ctx, `SELECT `+columns("")+` FROM jobs WHERE job_id = $1`, e.JobID)
	}
	job, err := scanJob(row)
	if err != nil {
		return model.TimeExtension{}, model.Job{}, false, fmt.Errorf("load job for extension: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.TimeExtension{}, model.Job{}, false, fmt.Errorf("commit resolve: %w", err)
	}
	return e, job, true, nil
}

func scanExtension(row rowScanner) (model.TimeExtension, error) {
	var (
		e      model.TimeExtension
		cost   int64
		status string
	)
	if err := row.Scan(&e.ID, &e.JobID, &e.DriverID, &e.AdditionalHours, &cost, &status, &e.CreatedAt, &e.ResolvedAt); err != nil {
		return model.TimeExtension{}, err
	}
	e.AdditionalCost = model.Money(cost)
	e.Status = model.ExtensionStatus(status)
	return e, nil
}
