package domain

import "time"

// Event is the outbound wire envelope fanned out by the hub.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Outbound event types.
const (
	EventRoomJoined     = "room-joined"
	EventRoomError      = "room-error"
	EventMemberJoined   = "member-joined"
	EventMemberLeft     = "member-left"
	EventNewQuestion    = "new-question"
	EventAnswerAck      = "answer-submitted"
	EventAnswerResult   = "answer-result"
	EventAnswerRevealed = "answer-revealed"
	EventChatMessage    = "chat-message"
)

// ErrorPayload carries a private error notice to one connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MemberChangePayload is broadcast on member-joined and member-left.
type MemberChangePayload struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	IsAdmin     bool     `json:"isAdmin,omitempty"`
	OnlineCount int      `json:"onlineCount"`
	Members     []Member `json:"members"`
}

// AnswerAckPayload confirms a submission to the submitting connection only.
type AnswerAckPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AnswerResultPayload is the private per-identity reveal outcome, sent to
// every live connection of the answering identity.
type AnswerResultPayload struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
	YourAnswer    string `json:"yourAnswer"`
	Points        int    `json:"points"`
	TotalScore    int    `json:"totalScore"`
}

// RevealPayload is the room-wide reveal broadcast.
type RevealPayload struct {
	CorrectAnswer string         `json:"correctAnswer"`
	Scores        map[string]int `json:"scores"`
	RevealedBy    string         `json:"revealedBy"`
}

// ChatMessagePayload is a room-wide chat broadcast.
type ChatMessagePayload struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	SenderEmail string    `json:"senderEmail"`
	Text        string    `json:"text"`
	Time        time.Time `json:"time"`
}
