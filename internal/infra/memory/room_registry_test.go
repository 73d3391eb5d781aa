package memory

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func TestCreateAndFindRoom(t *testing.T) {
	registry := NewRoomRegistry(2 * time.Hour)
	owner := domain.Identity{Name: "Alice", Email: "alice@example.com"}

	record, err := registry.CreateRoom(context.Background(), "Friday Quiz", owner)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !regexp.MustCompile(`^[0-9A-F]{6}$`).MatchString(record.Code) {
		t.Fatalf("unexpected room code %q", record.Code)
	}
	if record.ExpiresAt.Before(time.Now().Add(time.Hour)) {
		t.Fatalf("expected ~2h expiry, got %v", record.ExpiresAt)
	}

	found, err := registry.FindRoom(context.Background(), record.Code)
	if err != nil {
		t.Fatalf("find room: %v", err)
	}
	if found.Owner != owner || found.Name != "Friday Quiz" {
		t.Fatalf("unexpected record %+v", found)
	}
}

func TestFindUnknownRoom(t *testing.T) {
	registry := NewRoomRegistry(time.Hour)
	_, err := registry.FindRoom(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestExpiredRecordIsNotFound(t *testing.T) {
	registry := NewRoomRegistry(time.Hour)
	registry.Seed(domain.RoomRecord{
		Code:      "ABCDEF",
		Name:      "Old Room",
		Owner:     domain.Identity{Email: "alice@example.com"},
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	_, err := registry.FindRoom(context.Background(), "ABCDEF")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected expired record to be not found, got %v", err)
	}
}
