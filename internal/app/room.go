package app

import (
	"sync"
	"time"

	"quizroom-service/internal/domain"
)

// Room is the in-memory state of one live quiz room. All mutation happens
// under mu. Lock order is always room before hub; hub methods never take a
// room mutex.
type Room struct {
	code string
	name string

	mu           sync.Mutex
	admin        domain.Identity
	members      []domain.Member
	scores       map[string]int
	active       *activeQuestion
	history      []domain.QuestionSnapshot
	lastActivity time.Time
}

// activeQuestion is the single in-flight question a room may hold.
// Timers are cancelable handles; every callback re-checks the question ID
// under the room mutex before acting.
type activeQuestion struct {
	id            string
	text          string
	options       []string
	correctAnswer string
	timeLimit     int
	sender        domain.Identity
	answers       []domain.Answer
	revealed      bool
	createdAt     time.Time
	deadline      *time.Timer
	grace         *time.Timer
}

func newRoom(record domain.RoomRecord, now time.Time) *Room {
	return &Room{
		code:         record.Code,
		name:         record.Name,
		admin:        record.Owner,
		scores:       make(map[string]int),
		lastActivity: now,
	}
}

func (r *Room) touchLocked(now time.Time) {
	r.lastActivity = now
}

func (r *Room) memberLocked(email string) *domain.Member {
	for i := range r.members {
		if r.members[i].Email == email {
			return &r.members[i]
		}
	}
	return nil
}

// removeMemberLocked drops the member row and reassigns the admin to the
// earliest-joined remaining member when the admin departs.
func (r *Room) removeMemberLocked(email string) {
	kept := r.members[:0]
	for _, m := range r.members {
		if m.Email != email {
			kept = append(kept, m)
		}
	}
	r.members = kept

	if email == r.admin.Email && len(r.members) > 0 {
		next := &r.members[0]
		next.IsAdmin = true
		r.admin = domain.Identity{Name: next.Name, Email: next.Email}
	}
}

func (r *Room) snapshotLocked(forEmail string, onlineCount int) domain.RoomSnapshot {
	members := make([]domain.Member, len(r.members))
	copy(members, r.members)
	return domain.RoomSnapshot{
		Code:        r.code,
		Name:        r.name,
		Admin:       r.admin,
		Members:     members,
		Scores:      r.scoresLocked(),
		OnlineCount: onlineCount,
		IsAdmin:     forEmail == r.admin.Email,
	}
}

func (r *Room) membersLocked() []domain.Member {
	members := make([]domain.Member, len(r.members))
	copy(members, r.members)
	return members
}

func (r *Room) scoresLocked() map[string]int {
	scores := make(map[string]int, len(r.scores))
	for email, score := range r.scores {
		scores[email] = score
	}
	return scores
}

// questionSnapshotLocked renders the active question for the wire. The
// correct answer and collected answers are included only once revealed.
func (r *Room) questionSnapshotLocked() domain.QuestionSnapshot {
	q := r.active
	snapshot := domain.QuestionSnapshot{
		ID:          q.id,
		Text:        q.text,
		Options:     append([]string(nil), q.options...),
		TimeLimit:   q.timeLimit,
		SenderName:  q.sender.Name,
		SenderEmail: q.sender.Email,
		Revealed:    q.revealed,
		CreatedAt:   q.createdAt,
	}
	if q.revealed {
		snapshot.CorrectAnswer = q.correctAnswer
		snapshot.Answers = append([]domain.Answer(nil), q.answers...)
	}
	return snapshot
}

// cancelTimersLocked stops both pending timers. Safe to call on any exit
// path; a stopped or fired timer is a no-op.
func (r *Room) cancelTimersLocked() {
	if r.active == nil {
		return
	}
	if r.active.deadline != nil {
		r.active.deadline.Stop()
	}
	if r.active.grace != nil {
		r.active.grace.Stop()
	}
}
