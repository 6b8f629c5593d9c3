package ws

import "errors"

// ErrHubClosed indicates a registration attempt after the hub shut down.
var ErrHubClosed = errors.New("ws: hub closed")
