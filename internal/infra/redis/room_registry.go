package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/domain"
)

// Backing is the registry the cache falls through to on a miss.
type Backing interface {
	CreateRoom(ctx context.Context, name string, owner domain.Identity) (domain.RoomRecord, error)
	FindRoom(ctx context.Context, code string) (domain.RoomRecord, error)
}

// RoomRegistry caches registry records in Redis so repeated first-join
// lookups after an eviction don't hammer the database. Records are stored
// as JSON under room:registry:{code}; the cache TTL never outlives the
// record's own expiry.
type RoomRegistry struct {
	client  *redis.Client
	backing Backing
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
}

func NewRoomRegistry(client *redis.Client, backing Backing, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom delegates to the backing store and primes the cache.
func (r *RoomRegistry) CreateRoom(ctx context.Context, name string, owner domain.Identity) (domain.RoomRecord, error) {
	record, err := r.backing.CreateRoom(ctx, name, owner)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	r.cache(ctx, record)
	return record, nil
}

func (r *RoomRegistry) FindRoom(ctx context.Context, code string) (domain.RoomRecord, error) {
	if record, ok := r.cached(ctx, code); ok {
		return record, nil
	}

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if record, ok := r.cached(ctx, code); ok {
			return record, nil
		}
		record, err := r.backing.FindRoom(ctx, code)
		if err != nil {
			return domain.RoomRecord{}, err
		}
		r.cache(ctx, record)
		return record, nil
	})
	if err != nil {
		return domain.RoomRecord{}, err
	}
	return result.(domain.RoomRecord), nil
}

func (r *RoomRegistry) cached(ctx context.Context, code string) (domain.RoomRecord, bool) {
	raw, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return domain.RoomRecord{}, false
	}
	var record domain.RoomRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.RoomRecord{}, false
	}
	if record.Expired(time.Now()) {
		return domain.RoomRecord{}, false
	}
	return record, true
}

func (r *RoomRegistry) cache(ctx context.Context, record domain.RoomRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	if until := time.Until(record.ExpiresAt); until > 0 && (ttl <= 0 || until < ttl) {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	// best-effort; a failed write just means another backing lookup later
	_ = r.client.Set(ctx, r.key(record.Code), raw, ttl).Err()
}

func (r *RoomRegistry) key(code string) string {
	return "room:registry:" + code
}

func (r *RoomRegistry) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
