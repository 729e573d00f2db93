package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrGameAlreadyStarted   = errors.New("game already started")
	ErrNameTaken            = errors.New("name already in use by another player")
	ErrNotHost              = errors.New("only the host can perform this action")
	ErrNotInLobby           = errors.New("action only allowed in the lobby")
	ErrNoTeam               = errors.New("player has no team")
	ErrInvalidTeam          = errors.New("invalid team")
	ErrTeamsNotReady        = errors.New("both teams need at least one player")
	ErrInvalidPhase         = errors.New("invalid action for current phase")
	ErrInvalidTransition    = errors.New("invalid phase transition")
	ErrRoundLocked          = errors.New("round not yet unlocked")
	ErrRoundOutOfRange      = errors.New("round out of range")
	ErrDuplicateValues      = errors.New("values must be unique")
	ErrDigitOutOfRange      = errors.New("digit out of range")
	ErrIncompleteSubmission = errors.New("incomplete submission")
	ErrStartInProgress      = errors.New("game start already in progress")
	ErrNotJoined            = errors.New("not joined to a room")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrWordSource           = errors.New("no usable word list")
	ErrStoreUnavailable     = errors.New("store not initialized")
)
