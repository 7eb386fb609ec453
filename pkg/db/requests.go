package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// ListPendingRequests retrieves the pending requests for one date and time slot
func (db *DB) ListPendingRequests(ctx context.Context, date, timeSlot string) ([]model.Request, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, stakeholder_id, requested_capacity, priority_weight, request_date, time_slot, status
		FROM request
		WHERE request_date = $1 AND time_slot = $2 AND status = $3
		ORDER BY id
	`, date, timeSlot, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// ListAllPendingRequests retrieves every pending request regardless of slot
func (db *DB) ListAllPendingRequests(ctx context.Context) ([]model.Request, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, stakeholder_id, requested_capacity, priority_weight, request_date, time_slot, status
		FROM request
		WHERE status = $1
		ORDER BY request_date, time_slot, id
	`, string(model.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// InsertRequest inserts a new pending request and returns its generated ID
func (db *DB) InsertRequest(ctx context.Context, request *model.Request) error {
	if request.Status == "" {
		request.Status = model.StatusPending
	}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO request (stakeholder_id, requested_capacity, priority_weight, request_date, time_slot, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, request.StakeholderID, request.RequestedCapacity, request.PriorityWeight,
		request.Date, request.TimeSlot, string(request.Status)).Scan(&request.ID)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func scanRequests(rows pgx.Rows) ([]model.Request, error) {
	var requests []model.Request
	for rows.Next() {
		var r model.Request
		var requestDate time.Time
		var status string
		if err := rows.Scan(&r.ID, &r.StakeholderID, &r.RequestedCapacity, &r.PriorityWeight,
			&requestDate, &r.TimeSlot, &status); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.Date = requestDate.Format("2006-01-02")
		r.Status = model.RequestStatus(status)
		requests = append(requests, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	return requests, nil
}
