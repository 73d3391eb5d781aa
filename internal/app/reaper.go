package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartReaper launches the idle-room sweep. sync.Once guards against a
// second scheduler no matter how many times bootstrap runs; the goroutine
// stops when ctx is canceled.
func (s *RoomService) StartReaper(ctx context.Context) {
	s.reaperOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(s.opts.ReaperInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep()
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Sweep evicts every room that has no online members and has been idle
// past the inactivity timeout. Pending question timers are canceled before
// the room state is released so nothing fires against an evicted room.
func (s *RoomService) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for code, room := range s.rooms {
		if s.hub.OnlineCount(code) > 0 {
			continue
		}
		room.mu.Lock()
		idle := now.Sub(room.lastActivity)
		if idle > s.opts.InactivityTimeout {
			room.cancelTimersLocked()
			room.active = nil
			delete(s.rooms, code)
			reaped++
			log.Info().Str("room", code).Dur("idle", idle).Msg("evicted inactive room")
		}
		room.mu.Unlock()
	}
	if reaped > 0 {
		log.Info().Int("count", reaped).Msg("idle sweep done")
	}
}
