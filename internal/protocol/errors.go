package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"
	ErrRateLimit      = "E_RATE_LIMIT"
	ErrInternal       = "E_INTERNAL"

	// Teleport-request outcomes.
	ErrPlayerNotFound = "E_PLAYER_NOT_FOUND"
	ErrSelfRequest    = "E_SELF_REQUEST"
	ErrPendingExists  = "E_PENDING_EXISTS"
	ErrNoPending      = "E_NO_PENDING"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownCommand:  {},
	ErrRateLimit:       {},
	ErrInternal:        {},
	ErrPlayerNotFound:  {},
	ErrSelfRequest:     {},
	ErrPendingExists:   {},
	ErrNoPending:       {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
