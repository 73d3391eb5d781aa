package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// RoomRegistry is the durable collaborator rooms are bootstrapped from.
// The core only reads it on first join; records expire on their own.
type RoomRegistry interface {
	CreateRoom(ctx context.Context, name string, owner domain.Identity) (domain.RoomRecord, error)
	FindRoom(ctx context.Context, code string) (domain.RoomRecord, error)
}

// Options are the room engine tunables. Zero values fall back to the
// behavior observed in production.
type Options struct {
	PointsPerCorrect  int
	AnswerSlack       time.Duration
	RevealGrace       time.Duration
	ReaperInterval    time.Duration
	InactivityTimeout time.Duration
	DefaultTimeLimit  int
}

func (o Options) withDefaults() Options {
	if o.PointsPerCorrect == 0 {
		o.PointsPerCorrect = 10
	}
	if o.AnswerSlack == 0 {
		o.AnswerSlack = 2 * time.Second
	}
	if o.RevealGrace == 0 {
		o.RevealGrace = 5 * time.Second
	}
	if o.ReaperInterval == 0 {
		o.ReaperInterval = 5 * time.Minute
	}
	if o.InactivityTimeout == 0 {
		o.InactivityTimeout = 10 * time.Minute
	}
	if o.DefaultTimeLimit == 0 {
		o.DefaultTimeLimit = 30
	}
	return o
}

// RoomService owns every resident room and runs the question lifecycle.
// Events referencing a room that is no longer resident are dropped
// silently: they are almost always stale clients racing the reaper, and
// join-room is the recovery path.
type RoomService struct {
	registry RoomRegistry
	hub      *Hub
	opts     Options
	now      func() time.Time

	mu    sync.RWMutex
	rooms map[string]*Room

	reaperOnce sync.Once
}

func NewRoomService(registry RoomRegistry, hub *Hub, opts Options) *RoomService {
	return NewRoomServiceWithClock(registry, hub, opts, time.Now)
}

// NewRoomServiceWithClock is test-only for deterministic timestamps.
func NewRoomServiceWithClock(registry RoomRegistry, hub *Hub, opts Options, now func() time.Time) *RoomService {
	return &RoomService{
		registry: registry,
		hub:      hub,
		opts:     opts.withDefaults(),
		now:      now,
		rooms:    make(map[string]*Room),
	}
}

// Hub exposes the fan-out layer to the transport.
func (s *RoomService) Hub() *Hub {
	return s.hub
}

// Declare binds an identity to a connection. Until declared, a connection
// is anonymous and no room operation is accepted for it.
func (s *RoomService) Declare(connID, name, email string) error {
	if email == "" {
		return domain.ErrIdentityRequired
	}
	if name == "" {
		name = "Anonymous"
	}
	s.hub.Declare(connID, domain.Identity{Name: name, Email: email})
	return nil
}

// Join puts the connection into a room, lazily bootstrapping the room from
// the registry on first reference. Rejoining the same room is idempotent
// and only re-sends the snapshot. Joining a different room runs the full
// leave procedure on the previous one first.
func (s *RoomService) Join(ctx context.Context, connID, code, name, email string) error {
	identity, declared := s.hub.Identity(connID)
	if name == "" && declared {
		name = identity.Name
	}
	if email == "" && declared {
		email = identity.Email
	}
	if code == "" || name == "" || email == "" {
		return domain.ErrIdentityRequired
	}

	if s.hub.RoomOf(connID) == code {
		if room := s.room(code); room != nil {
			s.emitJoined(connID, room, email)
			return nil
		}
		return domain.ErrRoomNotFound
	}

	room, err := s.ensureRoom(ctx, code)
	if err != nil {
		return err
	}

	if prev := s.hub.RoomOf(connID); prev != "" && prev != code {
		s.Leave(connID)
	}
	s.hub.Declare(connID, domain.Identity{Name: name, Email: email})
	s.hub.JoinRoom(connID, code)

	room.mu.Lock()
	isAdmin := email == room.admin.Email
	if room.memberLocked(email) == nil {
		room.members = append(room.members, domain.Member{
			Name:     name,
			Email:    email,
			IsAdmin:  isAdmin,
			JoinedAt: s.now(),
		})
	}
	if _, ok := room.scores[email]; !ok {
		room.scores[email] = 0
	}
	online := s.hub.OnlineCount(code)
	room.touchLocked(s.now())
	snapshot := room.snapshotLocked(email, online)
	members := room.membersLocked()
	room.mu.Unlock()

	s.hub.ToConnection(connID, domain.Event{Type: domain.EventRoomJoined, Payload: snapshot})
	s.hub.ToRoomExcept(code, connID, domain.Event{Type: domain.EventMemberJoined, Payload: domain.MemberChangePayload{
		Name:        name,
		Email:       email,
		IsAdmin:     isAdmin,
		OnlineCount: online,
		Members:     members,
	}})

	log.Info().Str("room", code).Str("email", email).Bool("admin", isAdmin).Msg("member joined room")
	return nil
}

// Leave removes the connection from its current room. It is the single
// code path for explicit leave-room requests and transport disconnects.
// The member row goes away only once the identity has no connection left
// in the room; an admin departure promotes the earliest-joined member.
func (s *RoomService) Leave(connID string) {
	code := s.hub.RoomOf(connID)
	if code == "" {
		return
	}
	identity, _ := s.hub.Identity(connID)

	s.hub.LeaveRoom(connID)

	room := s.room(code)
	if room == nil {
		return
	}

	room.mu.Lock()
	if s.hub.RoomConnectionsFor(code, identity.Email) == 0 {
		room.removeMemberLocked(identity.Email)
	}
	online := s.hub.OnlineCount(code)
	if online > 0 {
		room.touchLocked(s.now())
	}
	members := room.membersLocked()
	room.mu.Unlock()

	s.hub.ToRoom(code, domain.Event{Type: domain.EventMemberLeft, Payload: domain.MemberChangePayload{
		Name:        identity.Name,
		Email:       identity.Email,
		OnlineCount: online,
		Members:     members,
	}})

	log.Info().Str("room", code).Str("email", identity.Email).Int("online", online).Msg("member left room")
}

// Disconnect runs the leave procedure and releases the connection.
func (s *RoomService) Disconnect(connID string) {
	s.Leave(connID)
	s.hub.Unregister(connID)
}

// SendQuestion opens a new question in the room. Only one question may be
// in flight; the slot stays occupied through the reveal grace window.
func (s *RoomService) SendQuestion(connID, code, text string, options []string, correctIndex, timeLimit int) error {
	if s.hub.RoomOf(connID) != code {
		return nil
	}
	identity, ok := s.hub.Identity(connID)
	if !ok {
		return nil
	}
	room := s.room(code)
	if room == nil {
		return nil
	}

	if len(options) < 2 || len(options) > 6 {
		return fmt.Errorf("question needs between 2 and 6 options, got %d", len(options))
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		return fmt.Errorf("correct answer index %d out of range", correctIndex)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("question text is required")
	}
	if timeLimit <= 0 {
		timeLimit = s.opts.DefaultTimeLimit
	}

	room.mu.Lock()
	if room.memberLocked(identity.Email) == nil {
		room.mu.Unlock()
		return nil
	}
	if room.active != nil {
		room.mu.Unlock()
		return domain.ErrQuestionActive
	}

	q := &activeQuestion{
		id:            uuid.NewString(),
		text:          text,
		options:       append([]string(nil), options...),
		correctAnswer: options[correctIndex],
		timeLimit:     timeLimit,
		sender:        identity,
		createdAt:     s.now(),
	}
	room.active = q
	snapshot := room.questionSnapshotLocked()
	room.history = append([]domain.QuestionSnapshot{snapshot}, room.history...)
	room.touchLocked(s.now())

	// Deadline fires a little after the client-side countdown so answers
	// in flight at the buzzer still land.
	questionID := q.id
	q.deadline = time.AfterFunc(time.Duration(timeLimit)*time.Second+s.opts.AnswerSlack, func() {
		s.autoReveal(code, questionID)
	})
	room.mu.Unlock()

	s.hub.ToRoom(code, domain.Event{Type: domain.EventNewQuestion, Payload: snapshot})

	log.Info().Str("room", code).Str("question", questionID).Str("sender", identity.Email).Int("timeLimit", timeLimit).Msg("question opened")
	return nil
}

// SubmitAnswer records an answer while the question is open. Every guard
// fails as a silent no-op: non-members, stale question IDs, answers after
// reveal, the question's own sender, and duplicates are all expected races
// in normal operation.
func (s *RoomService) SubmitAnswer(connID, code, questionID, answer string) {
	if s.hub.RoomOf(connID) != code {
		return
	}
	identity, ok := s.hub.Identity(connID)
	if !ok {
		return
	}
	room := s.room(code)
	if room == nil {
		return
	}

	room.mu.Lock()
	q := room.active
	if q == nil || room.memberLocked(identity.Email) == nil {
		room.mu.Unlock()
		return
	}
	if q.id != questionID || q.revealed || q.sender.Email == identity.Email {
		room.mu.Unlock()
		return
	}
	for _, a := range q.answers {
		if a.Email == identity.Email {
			room.mu.Unlock()
			return
		}
	}

	q.answers = append(q.answers, domain.Answer{
		Name:      identity.Name,
		Email:     identity.Email,
		Answer:    answer,
		IsCorrect: answer == q.correctAnswer,
		Timestamp: s.now(),
	})
	room.touchLocked(s.now())
	room.mu.Unlock()

	s.hub.ToConnection(connID, domain.Event{Type: domain.EventAnswerAck, Payload: domain.AnswerAckPayload{
		Success: true,
		Message: "Answer submitted!",
	}})
}

// Reveal resolves the active question on request of its sender. Anyone
// else gets a private rejection; a second reveal is a no-op.
func (s *RoomService) Reveal(connID, code string) error {
	if s.hub.RoomOf(connID) != code {
		return nil
	}
	identity, ok := s.hub.Identity(connID)
	if !ok {
		return nil
	}
	room := s.room(code)
	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	q := room.active
	if q == nil || q.revealed {
		return nil
	}
	if q.sender.Email != identity.Email {
		return domain.ErrNotSender
	}
	room.touchLocked(s.now())
	s.revealLocked(room, identity.Name)
	return nil
}

// Chat broadcasts a trimmed, non-empty message from a room member.
func (s *RoomService) Chat(connID, code, text string) {
	if s.hub.RoomOf(connID) != code {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	identity, ok := s.hub.Identity(connID)
	if !ok {
		return
	}
	room := s.room(code)
	if room == nil {
		return
	}

	room.mu.Lock()
	if room.memberLocked(identity.Email) == nil {
		room.mu.Unlock()
		return
	}
	room.touchLocked(s.now())
	room.mu.Unlock()

	s.hub.ToRoom(code, domain.Event{Type: domain.EventChatMessage, Payload: domain.ChatMessagePayload{
		ID:          uuid.NewString(),
		Sender:      identity.Name,
		SenderEmail: identity.Email,
		Text:        text,
		Time:        s.now(),
	}})
}

// Resident reports whether a room is currently held in memory.
func (s *RoomService) Resident(code string) bool {
	return s.room(code) != nil
}

// History returns the room's past questions, most recent first.
func (s *RoomService) History(code string) []domain.QuestionSnapshot {
	room := s.room(code)
	if room == nil {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return append([]domain.QuestionSnapshot(nil), room.history...)
}

// autoReveal is the deadline timer callback. The question ID guard makes a
// late-firing timer harmless once the question was revealed, superseded or
// the room evicted.
func (s *RoomService) autoReveal(code, questionID string) {
	room := s.room(code)
	if room == nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	q := room.active
	if q == nil || q.id != questionID || q.revealed {
		return
	}
	room.touchLocked(s.now())
	s.revealLocked(room, "System (Auto)")
}

// revealLocked is the shared manual/auto reveal procedure. Caller holds
// room.mu and has verified the question is open.
func (s *RoomService) revealLocked(room *Room, revealedBy string) {
	q := room.active
	if q.deadline != nil {
		q.deadline.Stop()
		q.deadline = nil
	}
	q.revealed = true

	for _, a := range q.answers {
		if a.IsCorrect {
			room.scores[a.Email] += s.opts.PointsPerCorrect
		}
	}

	revealedSnapshot := room.questionSnapshotLocked()
	for i := range room.history {
		if room.history[i].ID == q.id {
			room.history[i] = revealedSnapshot
			break
		}
	}

	// Private results go to every live connection of each answering
	// identity so multi-tab sessions stay consistent.
	for _, a := range q.answers {
		points := 0
		if a.IsCorrect {
			points = s.opts.PointsPerCorrect
		}
		s.hub.ToIdentity(a.Email, domain.Event{Type: domain.EventAnswerResult, Payload: domain.AnswerResultPayload{
			IsCorrect:     a.IsCorrect,
			CorrectAnswer: q.correctAnswer,
			YourAnswer:    a.Answer,
			Points:        points,
			TotalScore:    room.scores[a.Email],
		}})
	}

	s.hub.ToRoom(room.code, domain.Event{Type: domain.EventAnswerRevealed, Payload: domain.RevealPayload{
		CorrectAnswer: q.correctAnswer,
		Scores:        room.scoresLocked(),
		RevealedBy:    revealedBy,
	}})

	// Hold the revealed question visible for a grace window, then free the
	// slot. Skipped if the room was evicted or the question replaced.
	questionID := q.id
	code := room.code
	q.grace = time.AfterFunc(s.opts.RevealGrace, func() {
		s.clearQuestion(code, questionID)
	})

	log.Info().Str("room", code).Str("question", questionID).Str("revealedBy", revealedBy).Int("answers", len(q.answers)).Msg("answer revealed")
}

// clearQuestion is the grace timer callback returning the room to idle.
func (s *RoomService) clearQuestion(code, questionID string) {
	room := s.room(code)
	if room == nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.active != nil && room.active.id == questionID && room.active.revealed {
		room.active = nil
	}
}

// emitJoined re-sends the room snapshot on an idempotent rejoin from a
// connection already in the room's transport group.
func (s *RoomService) emitJoined(connID string, room *Room, email string) {
	room.mu.Lock()
	online := s.hub.OnlineCount(room.code)
	snapshot := room.snapshotLocked(email, online)
	room.mu.Unlock()
	s.hub.ToConnection(connID, domain.Event{Type: domain.EventRoomJoined, Payload: snapshot})
}

func (s *RoomService) room(code string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[code]
}

// ensureRoom returns the resident room or bootstraps it from the registry.
// Registry existence gates only this first reference; once resident, the
// room lives until the reaper evicts it.
func (s *RoomService) ensureRoom(ctx context.Context, code string) (*Room, error) {
	if room := s.room(code); room != nil {
		return room, nil
	}

	record, err := s.registry.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if record.Expired(s.now()) {
		return nil, domain.ErrRoomNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room, nil
	}
	room := newRoom(record, s.now())
	s.rooms[code] = room
	log.Info().Str("room", code).Str("owner", record.Owner.Email).Msg("room loaded into memory")
	return room, nil
}
