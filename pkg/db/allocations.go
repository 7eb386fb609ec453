package db

import (
	"context"
	"fmt"
	"time"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// CommitAllocations writes the approved allocation log entries and marks the
// corresponding requests ALLOCATED in a single transaction. Either every
// entry lands or none do.
func (db *DB) CommitAllocations(ctx context.Context, entries []model.AllocationLogEntry, requestIDs []int) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, entry := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO allocation_log (id, request_id, room_id, allocation_date, time_slot, score)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ID, entry.RequestID, entry.RoomID, entry.Date, entry.TimeSlot, entry.Score)
		if err != nil {
			return fmt.Errorf("failed to insert allocation log entry: %w", err)
		}
	}

	for _, requestID := range requestIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE request SET status = $2 WHERE id = $1 AND status = $3
		`, requestID, string(model.StatusAllocated), string(model.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to mark request %d allocated: %w", requestID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("request %d is no longer pending", requestID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListAllocationLogs retrieves the committed allocations for one date and
// time slot, newest first
func (db *DB) ListAllocationLogs(ctx context.Context, date, timeSlot string) ([]model.AllocationLogEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, request_id, room_id, allocation_date, time_slot, score
		FROM allocation_log
		WHERE allocation_date = $1 AND time_slot = $2
		ORDER BY created_at DESC, id
	`, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AllocationLogEntry
	for rows.Next() {
		var e model.AllocationLogEntry
		var allocationDate time.Time
		if err := rows.Scan(&e.ID, &e.RequestID, &e.RoomID, &allocationDate, &e.TimeSlot, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan allocation log entry: %w", err)
		}
		e.Date = allocationDate.Format("2006-01-02")
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation logs: %w", err)
	}

	return entries, nil
}
