package backend

import "fmt"

// FetchError is a transport-level or HTTP-level failure talking to the
// backend: network error, non-2xx status, or a success=false envelope.
type FetchError struct {
	Op     string
	Status int
	Err    error
	Msg    string
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// InvalidPayloadError means the response parsed but a required field
// (identifier, username, role) was absent or malformed. Never cached.
type InvalidPayloadError struct {
	UserID int64
	Field  string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("user %d: invalid payload: missing or malformed %s", e.UserID, e.Field)
}

// ActionError is a failed bot-control or message-send operation. It is a
// transient, user-visible condition, never fatal to the session.
type ActionError struct {
	Action string
	Msg    string
}

func (e *ActionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("bot action %q failed", e.Action)
	}
	return fmt.Sprintf("bot action %q failed: %s", e.Action, e.Msg)
}
