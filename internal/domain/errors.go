package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code has no live, unexpired
	// registry record to bootstrap from.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotMember is returned when an identity acts in a room it has not joined.
	ErrNotMember = errors.New("not a room member")
	// ErrQuestionActive is returned when a question is sent while another is in flight.
	ErrQuestionActive = errors.New("previous question is still active")
	// ErrNotSender is returned when someone other than the question author asks to reveal.
	ErrNotSender = errors.New("only the question sender can reveal the answer")
	// ErrIdentityRequired is returned when a connection acts before declaring who it is.
	ErrIdentityRequired = errors.New("identity not declared")
)
