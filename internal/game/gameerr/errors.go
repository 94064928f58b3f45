// Package gameerr holds the errors a match can reject an intent with.
//
// Validation errors are caused by the request itself (wrong turn, nothing to call, ...) and leave the
// record untouched. Structural errors mean the caller's view of the match is wrong (unknown match,
// missing opponent, stale version) and it should re-fetch or abort.
package gameerr

import "errors"

type Kind int

const (
	Unknown Kind = iota
	Validation
	Structural
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Structural:
		return "structural"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrNotYourTurn       = newErr(Validation, "NotYourTurn", "not your turn")
	ErrSnapAlreadyUsed   = newErr(Validation, "SnapAlreadyUsed", "you already snapped this round")
	ErrStakesAtCap       = newErr(Validation, "StakesAtCap", "stakes already at cap")
	ErrNothingToCall     = newErr(Validation, "NothingToCall", "nothing to call")
	ErrInsufficientCards = newErr(Validation, "InsufficientCards", "insufficient cards")
	ErrTooManyCards      = newErr(Validation, "TooManyCards", "too many cards")
	ErrNoActivePostRound = newErr(Validation, "NoActivePostRound", "no post-round state")
	ErrRevealSettled     = newErr(Validation, "RevealSettled", "reveal choice already made")
	ErrNotInMatch        = newErr(Validation, "NotInMatch", "player not in match")
	ErrUnknownIntent     = newErr(Validation, "UnknownIntent", "unknown intent")
	ErrLobbyFull         = newErr(Validation, "LobbyFull", "lobby already full")
	ErrMatchStarted      = newErr(Validation, "MatchStarted", "match already started")
	ErrMatchOver         = newErr(Validation, "MatchOver", "match is over")
	ErrInvalidNickname   = newErr(Validation, "InvalidNickname", "nickname must be 1-24 characters")

	ErrMatchNotFound   = newErr(Structural, "MatchNotFound", "match not found")
	ErrNeedTwoPlayers  = newErr(Structural, "NeedTwoPlayers", "two players required")
	ErrVersionConflict = newErr(Structural, "VersionConflict", "match record changed concurrently")
	ErrMatchExists     = newErr(Structural, "MatchExists", "match already exists")
	ErrEngineStopped   = newErr(Structural, "EngineStopped", "match engine stopped")
)

// KindOf 返回错误分类；非本包错误为 Unknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
