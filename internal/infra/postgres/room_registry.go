package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

// RoomRegistry stores the durable room records in Postgres.
type RoomRegistry struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewRoomRegistry(pool *pgxpool.Pool, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{pool: pool, ttl: ttl}
}

// CreateRoom inserts a record under a freshly minted code, retrying on the
// unlikely code collision.
func (r *RoomRegistry) CreateRoom(ctx context.Context, name string, owner domain.Identity) (domain.RoomRecord, error) {
	record := domain.RoomRecord{
		Name:      name,
		Owner:     owner,
		ExpiresAt: time.Now().Add(r.ttl),
	}
	for attempt := 0; attempt < 5; attempt++ {
		record.Code = memory.GenerateCode()
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO rooms (code, name, owner_name, owner_email, expires_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (code) DO NOTHING`,
			record.Code, record.Name, record.Owner.Name, record.Owner.Email, record.ExpiresAt)
		if err != nil {
			return domain.RoomRecord{}, fmt.Errorf("create room: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return record, nil
		}
	}
	return domain.RoomRecord{}, fmt.Errorf("create room: could not allocate a unique code")
}

// FindRoom reads a record by code; expired rows are treated as missing.
func (r *RoomRegistry) FindRoom(ctx context.Context, code string) (domain.RoomRecord, error) {
	record := domain.RoomRecord{Code: code}
	err := r.pool.QueryRow(ctx,
		`SELECT name, owner_name, owner_email, expires_at FROM rooms
		 WHERE code=$1 AND expires_at > now()`, code).
		Scan(&record.Name, &record.Owner.Name, &record.Owner.Email, &record.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RoomRecord{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("find room: %w", err)
	}
	return record, nil
}
