package arena

import "errors"

// Operation errors. The HTTP layer maps these to status codes with
// errors.Is, so the text doubles as the stable machine-readable reason.
var (
	ErrNameRequired    = errors.New("name is required")
	ErrNameTooLong     = errors.New("name must be 64 characters or fewer")
	ErrTagTooLong      = errors.New("tag must be 32 characters or fewer")
	ErrJoinBlocked     = errors.New("join blocked by admission policy")
	ErrMatchInProgress = errors.New("a match is already in progress")
	ErrNotEnoughAgents = errors.New("not enough agents")
	ErrSameAgent       = errors.New("an agent cannot fight itself")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrMatchNotFound   = errors.New("match not found")
)
