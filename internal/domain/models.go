package domain

import "time"

// Identity is a participant keyed by email; the display name is mutable
// and not uniqueness-enforced.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Member is a room membership row, unique by email within a room.
type Member struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	IsAdmin  bool      `json:"isAdmin"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomRecord is the durable registry record a room is bootstrapped from.
// The in-memory room lives and dies independently of this record; the
// record only gates first-join.
type RoomRecord struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Owner     Identity  `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r RoomRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// Answer is one identity's submission to a question, at most one per email.
type Answer struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Answer    string    `json:"answer"`
	IsCorrect bool      `json:"isCorrect"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionSnapshot is the wire and history view of a question.
// CorrectAnswer is withheld until reveal; omitempty keeps it off the
// new-question broadcast.
type QuestionSnapshot struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correctAnswer,omitempty"`
	TimeLimit     int       `json:"timeLimit"`
	SenderName    string    `json:"senderName"`
	SenderEmail   string    `json:"senderEmail"`
	Revealed      bool      `json:"revealed"`
	Answers       []Answer  `json:"answers,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RoomSnapshot is the full room view returned to a joining connection so
// a rejoin renders idempotently.
type RoomSnapshot struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Admin       Identity       `json:"admin"`
	Members     []Member       `json:"members"`
	Scores      map[string]int `json:"scores"`
	OnlineCount int            `json:"onlineCount"`
	IsAdmin     bool           `json:"isAdmin"`
}
