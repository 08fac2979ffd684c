package vault

import (
	"time"

	"github.com/google/uuid"
)

// State is the runtime-only cache attached to one entry: the last generated
// code and the countdown indicator. Never serialized.
type State struct {
	Code        string
	GeneratedAt time.Time
	FrameAt     time.Time
	Fraction    float64
}

// StateMap joins entries to their runtime state by id.
type StateMap map[uuid.UUID]*State
