package block

import (
	sess "github.com/abhisek/quantiz/internal/session"
)

// blockReadyMsg is sent when the current block has been generated or
// loaded from the session cache.
type blockReadyMsg struct {
	Block *sess.Block
	Err   error
}
