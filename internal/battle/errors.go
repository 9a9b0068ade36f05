// internal/battle/errors.go
package battle

import (
	"errors"
	"fmt"
)

// Kind groups engine errors by how a caller should react to them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindRaceLost   Kind = "race_lost"
	KindExecution  Kind = "execution"
	KindPermission Kind = "permission"
)

// Error is a coded engine error. Two Errors match under errors.Is when their codes match,
// so a wrapped or re-messaged sentinel still compares equal to the original.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrNoEligibleProblems  = &Error{Kind: KindValidation, Code: "no_eligible_problems", Message: "not enough eligible problems for this battle"}
	ErrInvalidBattleConfig = &Error{Kind: KindValidation, Code: "invalid_battle_config", Message: "invalid battle configuration"}
	ErrSelfJoin            = &Error{Kind: KindValidation, Code: "self_join", Message: "cannot join your own battle"}
	ErrBattleNotActive     = &Error{Kind: KindValidation, Code: "battle_not_active", Message: "battle is not in progress"}
	ErrInvalidSubmission   = &Error{Kind: KindValidation, Code: "invalid_submission", Message: "invalid submission"}

	ErrRoomNotFound    = &Error{Kind: KindNotFound, Code: "room_not_found", Message: "room not found or already started"}
	ErrBattleNotFound  = &Error{Kind: KindNotFound, Code: "battle_not_found", Message: "battle not found"}
	ErrProblemNotFound = &Error{Kind: KindNotFound, Code: "problem_not_found", Message: "problem not found"}

	ErrJoinRaceLost  = &Error{Kind: KindRaceLost, Code: "join_race_lost", Message: "room was claimed by another player"}
	ErrRoomCodeTaken = &Error{Kind: KindRaceLost, Code: "room_code_taken", Message: "room code already in use"}

	ErrExecution = &Error{Kind: KindExecution, Code: "execution_failed", Message: "code execution failed"}

	ErrNotParticipant = &Error{Kind: KindPermission, Code: "not_participant", Message: "caller is not a player in this battle"}
)

// KindOf returns the Kind of the first engine Error in err's chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
