package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"quizroom-service/internal/domain"
)

// RoomRegistry is an in-memory implementation of app.RoomRegistry, useful
// when no database is configured and in tests.
type RoomRegistry struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	records map[string]domain.RoomRecord
}

func NewRoomRegistry(ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		ttl:     ttl,
		clock:   time.Now,
		records: make(map[string]domain.RoomRecord),
	}
}

// CreateRoom mints a unique short code and stores the record with an expiry.
func (r *RoomRegistry) CreateRoom(_ context.Context, name string, owner domain.Identity) (domain.RoomRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = GenerateCode()
		if _, exists := r.records[code]; !exists {
			break
		}
	}

	record := domain.RoomRecord{
		Code:      code,
		Name:      name,
		Owner:     owner,
		ExpiresAt: r.clock().Add(r.ttl),
	}
	r.records[code] = record
	return record, nil
}

// FindRoom returns the record for a code; expired records are not found.
func (r *RoomRegistry) FindRoom(_ context.Context, code string) (domain.RoomRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[code]
	if !ok || record.Expired(r.clock()) {
		return domain.RoomRecord{}, domain.ErrRoomNotFound
	}
	return record, nil
}

// Seed inserts a record directly, for tests.
func (r *RoomRegistry) Seed(record domain.RoomRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Code] = record
}

// GenerateCode returns a six-character uppercase hex room code.
func GenerateCode() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return strings.ToUpper(hex.EncodeToString(buf))
}
