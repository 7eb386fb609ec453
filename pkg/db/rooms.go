package db

import (
	"context"
	"fmt"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// ListRooms retrieves all rooms ordered by ID
func (db *DB) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, name, capacity, room_type
		FROM room
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Capacity, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, nil
}

// InsertRoom inserts a new room record and returns its generated ID
func (db *DB) InsertRoom(ctx context.Context, room *model.Room) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO room (name, capacity, room_type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, room.Name, room.Capacity, room.Type).Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}
