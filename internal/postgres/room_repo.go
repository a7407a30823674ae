package postgres

import (
	"context"
	"errors"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRepository stores directory metadata for rooms. Live membership never
// touches the database; it lives in the in-memory registry.
type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

const (
	qInsertRoom = `
		INSERT INTO rooms (name, max_editors)
		VALUES ($1, $2)
		RETURNING id, created_at`

	qSelectRoom = `SELECT id, name, max_editors, created_at FROM rooms WHERE id=$1`

	qSelectMaxEditors = `SELECT max_editors FROM rooms WHERE id=$1`

	qListRooms = `
		SELECT id, name, max_editors, created_at
		FROM rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	qDeleteRoom = `DELETE FROM rooms WHERE id=$1`
)

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.QueryRow(ctx, qInsertRoom, room.Name, room.MaxEditors).
		Scan(&room.ID, &room.CreatedAt)
	return err
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	err := r.db.QueryRow(ctx, qSelectRoom, id).
		Scan(&rm.ID, &rm.Name, &rm.MaxEditors, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// MaxEditors is the capacity lookup used at websocket join time.
func (r *RoomRepository) MaxEditors(ctx context.Context, id string) (int64, error) {
	var max int64
	err := r.db.QueryRow(ctx, qSelectMaxEditors, id).Scan(&max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrRoomNotFound
		}
		return 0, err
	}
	return max, nil
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, ok, err := parseCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	var createdAt any
	var id any
	if ok {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, qListRooms, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.MaxEditors, &rm.CreatedAt); err != nil {
			return nil, "", err
		}
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(rooms) == limit {
		next = cursorAfter(rooms[len(rooms)-1])
	}

	return rooms, next, nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, qDeleteRoom, id)
	return err
}
