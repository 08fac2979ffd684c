// Package session owns the vault lifecycle: the locked/unlocking/unlocked
// state machine, the single event loop that serializes all vault and entry
// state, and the background workers that keep persistence off that loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/config"
	"github.com/mlukins/keyfob/internal/logging"
	"github.com/mlukins/keyfob/internal/otpx"
	"github.com/mlukins/keyfob/internal/scheduler"
	"github.com/mlukins/keyfob/internal/store"
	"github.com/mlukins/keyfob/internal/vault"
)

// ErrClosed is returned by Apply and Snapshot after the event loop exits.
var ErrClosed = errors.New("session closed")

type compKind int

const (
	compLoad compKind = iota
	compUnlock
	compSave
)

// completion carries a background result back into the event loop. epoch
// ties it to the identity selection that spawned it; a completion from a
// previous epoch is dropped.
type completion struct {
	kind    compKind
	epoch   uint64
	gen     uint64
	res     store.Result
	entries []vault.Entry
	err     error
}

type applyResult struct {
	code string
	err  error
}

type intentEnvelope struct {
	in   Intent
	resp chan applyResult
}

// Session mediates between the presentation layer and the vault store. All
// fields below the channel block are owned by the Run loop exclusively: no
// lock protects them because no other goroutine touches them.
type Session struct {
	state *config.Statefile
	str   store.Store
	env   *store.EnvelopeStore // non-nil only for the envelope backend
	sched *scheduler.Scheduler
	log   logging.Logger

	intents     chan intentEnvelope
	completions chan completion
	snapshots   chan chan Snapshot
	closed      chan struct{}

	loads *pool
	saves *saveLane

	// Loop-owned state.
	kind          StateKind
	identity      string
	epoch         uint64
	pendingBlob   []byte
	loadPending   bool
	unlockPending bool
	vlt           *vault.Vault
	runtime       vault.StateMap
	notices       []Notice

	saveGen  uint64 // generation of the most recently issued save
	saveDone uint64 // highest completed generation seen so far
}

func New(cfg *config.Config, state *config.Statefile, st store.Store, sched *scheduler.Scheduler, log logging.Logger) *Session {
	if log == nil {
		log = logging.NewDiscard()
	}
	s := &Session{
		state:       state,
		str:         st,
		sched:       sched,
		log:         log.With("component", "session"),
		intents:     make(chan intentEnvelope),
		completions: make(chan completion, 256),
		snapshots:   make(chan chan Snapshot),
		closed:      make(chan struct{}),
		loads:       newPool(cfg.Workers),
		kind:        StateNoIdentity,
	}
	if env, ok := st.(*store.EnvelopeStore); ok {
		s.env = env
	}
	return s
}

// Run processes intents, worker completions and timer events serially until
// ctx is cancelled. It owns all vault state for its lifetime.
func (s *Session) Run(ctx context.Context) {
	s.saves = newSaveLane(ctx, s.str, s.completions)
	defer close(s.closed)
	defer s.reset(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-s.intents:
			env.resp <- s.apply(ctx, env.in)
		case c := <-s.completions:
			s.handleCompletion(ctx, c)
		case f := <-s.sched.Firings():
			s.handleFiring(ctx, f)
		case at := <-s.sched.Ticks():
			s.handleTick(at)
		case resp := <-s.snapshots:
			resp <- s.snapshot()
		}
	}
}

// Apply submits an intent to the event loop and waits for its validation
// result. For CopyCode the returned string is the current code.
func (s *Session) Apply(ctx context.Context, in Intent) (string, error) {
	env := intentEnvelope{in: in, resp: make(chan applyResult, 1)}
	select {
	case s.intents <- env:
	case <-s.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-env.resp:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Snapshot returns a read-only copy of the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	resp := make(chan Snapshot, 1)
	select {
	case s.snapshots <- resp:
	case <-s.closed:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) apply(ctx context.Context, in Intent) applyResult {
	switch in := in.(type) {
	case SelectIdentity:
		return applyResult{err: s.selectIdentity(ctx, in.Identity)}
	case Unlock:
		return applyResult{err: s.unlock(ctx, in.Passphrase)}
	case CreateEntry:
		return applyResult{err: s.createEntry(ctx, in.Form)}
	case EditEntry:
		return applyResult{err: s.editEntry(ctx, in.ID, in.Form)}
	case DeleteEntry:
		return applyResult{err: s.deleteEntry(ctx, in.ID)}
	case MoveEntry:
		return applyResult{err: s.moveEntry(ctx, in.ID, in.Up)}
	case CopyCode:
		code, err := s.copyCode(in.ID)
		return applyResult{code: code, err: err}
	case DismissNotice:
		s.dismiss(in.ID)
		return applyResult{}
	case Logout:
		s.reset(ctx)
		return applyResult{}
	default:
		return applyResult{err: fmt.Errorf("unknown intent %T", in)}
	}
}

func (s *Session) selectIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return common.ErrIdentityMissing
	}

	// Selecting while unlocked (or mid-unlock) implies leaving the current
	// vault first.
	s.reset(ctx)

	s.identity = identity
	s.kind = StateAwaitingUnlock
	s.loadPending = true

	if err := s.state.SetLastUser(identity); err != nil {
		s.notify(ctx, fmt.Sprintf("could not remember identity: %v", err))
	}

	epoch := s.epoch
	s.loads.submit(func() {
		res, err := s.str.Load(ctx, identity)
		s.complete(ctx, completion{kind: compLoad, epoch: epoch, res: res, err: tagBackground(err)})
	})

	s.log.Info(ctx, "identity selected", "identity", identity)
	return nil
}

func (s *Session) unlock(ctx context.Context, passphrase []byte) error {
	if s.kind != StateAwaitingUnlock {
		return fmt.Errorf("nothing to unlock: %v", s.kind)
	}
	if s.env == nil {
		return fmt.Errorf("%s backend unlocks without a passphrase", config.BackendKeyring)
	}
	if s.loadPending {
		return fmt.Errorf("vault load still in progress")
	}
	if s.unlockPending {
		return fmt.Errorf("unlock already in progress")
	}

	s.unlockPending = true
	blob := s.pendingBlob
	epoch := s.epoch
	s.loads.submit(func() {
		defer common.WipeByteArray(passphrase)
		entries, err := s.env.Unlock(ctx, blob, passphrase)
		s.complete(ctx, completion{kind: compUnlock, epoch: epoch, entries: entries, err: tagBackground(err)})
	})
	return nil
}

func (s *Session) handleCompletion(ctx context.Context, c completion) {
	if c.epoch != s.epoch {
		s.log.Debug(ctx, "dropping completion from previous epoch", "kind", int(c.kind))
		return
	}

	switch c.kind {
	case compLoad:
		s.loadPending = false
		if c.err != nil {
			s.notify(ctx, fmt.Sprintf("could not load vault: %v", c.err))
			return
		}
		switch c.res.Status {
		case store.StatusUnlocked:
			s.becomeUnlocked(ctx, c.res.Entries)
		case store.StatusNotFound:
			if s.env == nil {
				// No stored vault in the credential store: start empty.
				s.becomeUnlocked(ctx, nil)
				return
			}
			// Fresh identity on the envelope backend: the first passphrase
			// creates the vault.
			s.pendingBlob = nil
		case store.StatusAwaitingUnlock:
			s.pendingBlob = c.res.Blob
		}

	case compUnlock:
		s.unlockPending = false
		if c.err != nil {
			switch {
			case errors.Is(c.err, common.ErrDecryptAuth):
				s.notify(ctx, "could not decrypt vault: wrong passphrase or corrupted data")
			case errors.Is(c.err, common.ErrParse):
				s.notify(ctx, fmt.Sprintf("vault data is damaged: %v", c.err))
			default:
				s.notify(ctx, fmt.Sprintf("unlock failed: %v", c.err))
			}
			return
		}
		s.becomeUnlocked(ctx, c.entries)

	case compSave:
		if c.gen <= s.saveDone {
			// A newer save already completed; this result is stale and its
			// outcome must not clobber the newer one.
			s.log.Warn(ctx, "ignoring stale save completion", "generation", c.gen, "latest", s.saveDone)
			return
		}
		s.saveDone = c.gen
		if c.err != nil {
			// Best-effort persistence: the in-memory mutation stays.
			s.notify(ctx, fmt.Sprintf("could not save vault: %v", c.err))
		}
	}
}

func (s *Session) becomeUnlocked(ctx context.Context, entries []vault.Entry) {
	v, err := vault.New(entries)
	if err != nil {
		s.notify(ctx, fmt.Sprintf("vault data is damaged: %v", err))
		return
	}

	s.kind = StateUnlocked
	s.vlt = v
	s.pendingBlob = nil
	s.runtime = make(vault.StateMap, v.Len())

	for _, e := range v.Entries() {
		s.runtime[e.ID] = &vault.State{}
		s.sched.Subscribe(e.ID, e.Step)
	}

	s.log.Info(ctx, "vault unlocked", "identity", s.identity, "entries", v.Len())
}

func (s *Session) createEntry(ctx context.Context, form vault.Form) error {
	if s.kind != StateUnlocked {
		return common.ErrLocked
	}

	entry, err := form.Build()
	if err != nil {
		return err
	}
	if err := s.vlt.Add(entry); err != nil {
		return err
	}

	s.runtime[entry.ID] = &vault.State{}
	s.sched.Subscribe(entry.ID, entry.Step)
	s.issueSave(ctx)
	return nil
}

func (s *Session) editEntry(ctx context.Context, id uuid.UUID, form vault.Form) error {
	if s.kind != StateUnlocked {
		return common.ErrLocked
	}

	current, ok := s.vlt.Get(id)
	if !ok {
		return common.ErrEntryNotFound
	}

	updated, err := form.Apply(current)
	if err != nil {
		return err
	}
	if err := s.vlt.Update(updated); err != nil {
		return err
	}

	// Resubscribing forces a synthetic firing, so the code reflects the new
	// parameters immediately.
	s.sched.Unsubscribe(id)
	s.runtime[id] = &vault.State{}
	s.sched.Subscribe(id, updated.Step)
	s.issueSave(ctx)
	return nil
}

func (s *Session) deleteEntry(ctx context.Context, id uuid.UUID) error {
	if s.kind != StateUnlocked {
		return common.ErrLocked
	}
	if err := s.vlt.Remove(id); err != nil {
		return err
	}

	s.sched.Unsubscribe(id)
	delete(s.runtime, id)
	s.issueSave(ctx)
	return nil
}

func (s *Session) moveEntry(ctx context.Context, id uuid.UUID, up bool) error {
	if s.kind != StateUnlocked {
		return common.ErrLocked
	}

	var (
		moved bool
		err   error
	)
	if up {
		moved, err = s.vlt.MoveUp(id)
	} else {
		moved, err = s.vlt.MoveDown(id)
	}
	if err != nil {
		return err
	}
	if moved {
		s.issueSave(ctx)
	}
	return nil
}

func (s *Session) copyCode(id uuid.UUID) (string, error) {
	if s.kind != StateUnlocked {
		return "", common.ErrLocked
	}
	if _, ok := s.vlt.Get(id); !ok {
		return "", common.ErrEntryNotFound
	}
	st, ok := s.runtime[id]
	if !ok || st.Code == "" {
		return "", fmt.Errorf("code not generated yet")
	}
	return st.Code, nil
}

// issueSave snapshots the vault and enqueues it on the FIFO save lane.
// Every accepted mutation issues its own save, stamped with a generation;
// stale completions are rejected in handleCompletion.
func (s *Session) issueSave(ctx context.Context) {
	s.saveGen++
	job := saveJob{
		epoch:    s.epoch,
		gen:      s.saveGen,
		identity: s.identity,
		entries:  s.vlt.Entries(),
	}
	if !s.saves.enqueue(job) {
		job.wipe()
		s.notify(ctx, "save queue is full, change not persisted")
	}
}

// drainSaves blocks until every issued save has completed, processing
// completions in place. Runs before logout wipes the envelope passphrase so
// an in-flight save of the last mutation cannot fail with a locked store.
func (s *Session) drainSaves(ctx context.Context) {
	for s.saveDone < s.saveGen {
		select {
		case c := <-s.completions:
			s.handleCompletion(ctx, c)
		case <-ctx.Done():
			return
		}
	}
}

// reset implements logout: every trace of the decrypted vault and derived
// key material is wiped, subscriptions are dropped and the epoch advances
// so in-flight background results are discarded on arrival.
func (s *Session) reset(ctx context.Context) {
	// Notices belong to the session being left behind. A save failure
	// surfacing during the drain below still lands as a fresh notice.
	s.notices = nil
	s.drainSaves(ctx)
	s.sched.UnsubscribeAll()

	if s.vlt != nil {
		s.vlt.Wipe()
		s.vlt = nil
	}
	if s.env != nil {
		s.env.Clear()
	}

	if s.kind != StateNoIdentity {
		s.log.Info(ctx, "logged out", "identity", s.identity)
	}

	s.runtime = nil
	s.pendingBlob = nil
	s.loadPending = false
	s.unlockPending = false
	s.identity = ""
	s.kind = StateNoIdentity
	s.epoch++
	s.saveGen = 0
	s.saveDone = 0
}

func (s *Session) handleFiring(ctx context.Context, f scheduler.Firing) {
	if s.kind != StateUnlocked {
		return
	}
	for _, id := range f.IDs {
		e, ok := s.vlt.Get(id)
		if !ok {
			continue
		}
		code, err := otpx.Generate(e.Secret, e.Algorithm, e.Digits, e.Step, f.At)
		if err != nil {
			s.notify(ctx, fmt.Sprintf("could not compute code for %q: %v", e.Label, err))
			continue
		}

		st, ok := s.runtime[id]
		if !ok {
			st = &vault.State{}
			s.runtime[id] = st
		}
		st.Code = code
		st.GeneratedAt = f.At
		st.FrameAt = f.At
		st.Fraction = otpx.Fraction(f.At, e.Step)
	}
}

// handleTick refreshes countdown fractions only; codes change exclusively
// on step-boundary firings.
func (s *Session) handleTick(at time.Time) {
	if s.kind != StateUnlocked {
		return
	}
	for id, st := range s.runtime {
		e, ok := s.vlt.Get(id)
		if !ok {
			continue
		}
		st.FrameAt = at
		st.Fraction = otpx.Fraction(at, e.Step)
	}
}

func (s *Session) notify(ctx context.Context, text string) {
	s.notices = append(s.notices, Notice{ID: uuid.New(), Text: text, At: time.Now()})
	s.log.Warn(ctx, "notice", "text", text)
}

func (s *Session) dismiss(id uuid.UUID) {
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			return
		}
	}
}

func (s *Session) complete(ctx context.Context, c completion) {
	select {
	case s.completions <- c:
	case <-ctx.Done():
	}
}
