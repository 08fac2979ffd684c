package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/otpx"
	"github.com/mlukins/keyfob/internal/vault"
)

// StateKind tags the session state machine variant.
type StateKind int

const (
	StateNoIdentity StateKind = iota
	StateAwaitingUnlock
	StateUnlocked
)

func (k StateKind) String() string {
	switch k {
	case StateNoIdentity:
		return "no identity"
	case StateAwaitingUnlock:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Notice is a dismissible notification surfaced to the user. IDs are
// session-scoped random identifiers.
type Notice struct {
	ID   uuid.UUID
	Text string
	At   time.Time
}

// EntryView joins one persisted entry with its runtime code state for
// display. Secret bytes never appear here.
type EntryView struct {
	ID        uuid.UUID
	Label     string
	Issuer    string
	Icon      vault.Icon
	Code      string
	Pretty    string
	Remaining uint
	Fraction  float64
	Algorithm otpx.Algorithm
	Digits    uint
	Step      uint
	Skew      uint
}

// Snapshot is the read-only view of session state handed to the
// presentation layer.
type Snapshot struct {
	Kind               StateKind
	Identity           string
	AwaitingPassphrase bool
	LoadPending        bool
	Entries            []EntryView
	Notices            []Notice
}

// snapshot builds the view from loop-owned state. Only called from the loop.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Kind:               s.kind,
		Identity:           s.identity,
		AwaitingPassphrase: s.kind == StateAwaitingUnlock && s.env != nil && !s.loadPending,
		LoadPending:        s.loadPending || s.unlockPending,
		Notices:            append([]Notice(nil), s.notices...),
	}

	if s.kind != StateUnlocked {
		return snap
	}

	for _, e := range s.vlt.Entries() {
		view := EntryView{
			ID:        e.ID,
			Label:     e.Label,
			Issuer:    e.Issuer,
			Icon:      e.Icon,
			Pretty:    otpx.FormatCode(""),
			Algorithm: e.Algorithm,
			Digits:    e.Digits,
			Step:      e.Step,
			Skew:      e.Skew,
		}
		if st, ok := s.runtime[e.ID]; ok && st.Code != "" {
			view.Code = st.Code
			view.Pretty = otpx.FormatCode(st.Code)
			view.Fraction = st.Fraction
			view.Remaining = otpx.Remaining(st.FrameAt, e.Step)
		}
		snap.Entries = append(snap.Entries, view)
	}
	return snap
}
