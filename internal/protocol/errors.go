package protocol

const (
	// Request validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrUnknownMode     = "E_UNKNOWN_MODE"

	// Dataset state.
	ErrNotFound = "E_NOT_FOUND"
	ErrNotReady = "E_NOT_READY"

	ErrMethodNotAllowed = "E_METHOD_NOT_ALLOWED"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadRequest:       {},
	ErrUnknownMode:      {},
	ErrNotFound:         {},
	ErrNotReady:         {},
	ErrMethodNotAllowed: {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
