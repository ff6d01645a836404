package chat

import "errors"

// Protocol errors. They are reported to the offending session only and never
// leave the Registry modified.
var (
	ErrNickInUse     = errors.New("nick in use")
	ErrNotRegistered = errors.New("nick not registered")
	ErrNotMember     = errors.New("not a member of channel")
	ErrNoSuchChannel = errors.New("no such channel")
	ErrInvalidName   = errors.New("invalid name")
)

// ErrCorrupted reports a Registry bookkeeping defect, such as a channel member
// without a route. The request that hit it is abandoned.
var ErrCorrupted = errors.New("registry bookkeeping is inconsistent")
