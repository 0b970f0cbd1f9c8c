package db

import (
	"context"
	"fmt"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
)

const driverColumns = `driver_id, name, approval_status, is_online, capabilities, vehicle, latitude, longitude, created_at, updated_at`

type DriversRepo struct {
	db *DB
}

func NewDriversRepo(db *DB) ports.IDriversRepo {
	return &DriversRepo{
		db: db,
	}
}

func (dr *DriversRepo) Create(ctx context.Context, d model.Driver) error {
	q := `INSERT INTO drivers (` + driverColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var lat, lng *float64
	if d.Location != nil {
		lat, lng = &d.Location.Latitude, &d.Location.Longitude
	}
	_, err := dr.db.Pool.Exec(ctx, q,
		d.ID, d.Name, string(d.ApprovalStatus), d.IsOnline, capabilityStrings(d.Capabilities), d.Vehicle,
		lat, lng, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err, "drivers_pkey") {
			return myerrors.NewValidation("driver_id", "already registered")
		}
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}

func (dr *DriversRepo) Get(ctx context.Context, driverId string) (model.Driver, error) {
	q := `SELECT ` + driverColumns + ` FROM drivers WHERE driver_id = $1`
	d, err := scanDriver(dr.db.Pool.QueryRow(ctx, q, driverId))
	if err != nil {
		return model.Driver{}, notFound(err, "driver", driverId)
	}
	return d, nil
}

func (dr *DriversRepo) SetApproval(ctx context.Context, driverId string, status model.ApprovalStatus) (model.Driver, error) {
	q := `UPDATE drivers SET approval_status = $2, updated_at = now()
		WHERE driver_id = $1
		RETURNING ` + driverColumns
	d, err := scanDriver(dr.db.Pool.QueryRow(ctx, q, driverId, string(status)))
	if err != nil {
		return model.Driver{}, notFound(err, "driver", driverId)
	}
	return d, nil
}

// SetOnline toggles presence. A nil loc keeps the last known position.
func (dr *DriversRepo) SetOnline(ctx context.Context, driverId string, online bool, loc *model.Location) (model.Driver, error) {
	q := `UPDATE drivers
		SET
			is_online = $2,
			latitude = COALESCE($3, latitude),
			longitude = COALESCE($4, longitude),
			updated_at = now()
		WHERE driver_id = $1
		RETURNING ` + driverColumns

	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Latitude, &loc.Longitude
	}
	d, err := scanDriver(dr.db.Pool.QueryRow(ctx, q, driverId, online, lat, lng))
	if err != nil {
		return model.Driver{}, notFound(err, "driver", driverId)
	}
	return d, nil
}

func (dr *DriversRepo) UpdateLocation(ctx context.Context, driverId string, loc model.Location) (model.Driver, error) {
	q := `UPDATE drivers SET latitude = $2, longitude = $3, updated_at = now()
		WHERE driver_id = $1
		RETURNING ` + driverColumns
	d, err := scanDriver(dr.db.Pool.QueryRow(ctx, q, driverId, loc.Latitude, loc.Longitude))
	if err != nil {
		return model.Driver{}, notFound(err, "driver", driverId)
	}
	return d, nil
}

func scanDriver(row rowScanner) (model.Driver, error) {
	var (
		d        model.Driver
		approval string
		caps     []string
		lat, lng *float64
	)
	if err := row.Scan(&d.ID, &d.Name, &approval, &d.IsOnline, &caps, &d.Vehicle, &lat, &lng, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return model.Driver{}, err
	}
	d.ApprovalStatus = model.ApprovalStatus(approval)
	for _, c := range caps {
		d.Capabilities = append(d.Capabilities, model.ServiceType(c))
	}
	if lat != nil && lng != nil {
		d.Location = &model.Location{Latitude: *lat, Longitude: *lng}
	}
	return d, nil
}

func capabilityStrings(caps []model.ServiceType) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
