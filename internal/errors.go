package internal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAlreadyShutdown is returned when Shutdown is requested a second
	// time on a client that owns its loop group, or when a connection is
	// attempted on a group that is already down.
	ErrAlreadyShutdown = errors.New("wsconnect: already shut down")

	// ErrFrameTooLarge is delivered through OnError when an inbound frame
	// announces a payload larger than Config.MaxFrameSize.
	ErrFrameTooLarge = errors.New("wsconnect: inbound frame exceeds max frame size")
)

// InvalidResponseStatusError is returned from Connect when the server answers
// the upgrade request with anything but 101 Switching Protocols. Head carries
// the complete response head for callers that want to inspect it; its body
// has already been drained.
type InvalidResponseStatusError struct {
	Head *http.Response
}

func (e *InvalidResponseStatusError) Error() string {
	return fmt.Sprintf("wsconnect: upgrade rejected: %s", e.Head.Status)
}
