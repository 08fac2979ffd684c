package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/store"
	"github.com/mlukins/keyfob/internal/vault"
)

// pool runs load and unlock tasks on background goroutines, capped by a
// semaphore channel. Results rejoin the event loop as completion messages;
// callers never block on the work itself.
type pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	return &pool{sem: make(chan struct{}, size)}
}

func (p *pool) submit(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		fn()
	}()
}

func (p *pool) wait() { p.wg.Wait() }

// tagBackground marks an untyped worker failure so callers can match it with
// errors.Is. Domain sentinels pass through unchanged.
func tagBackground(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		common.ErrPlatformStore,
		common.ErrDecryptAuth,
		common.ErrParse,
		common.ErrLocked,
		common.ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", common.ErrBackgroundTask, err)
}

// saveJob is one snapshot of the vault headed for the backing store,
// stamped with its issue-order generation. The job owns its entries,
// including the secret bytes, and wipes them once the save finishes.
type saveJob struct {
	epoch    uint64
	gen      uint64
	identity string
	entries  []vault.Entry
}

func (j saveJob) wipe() {
	for i := range j.entries {
		common.WipeByteArray(j.entries[i].Secret)
	}
}

// saveLane executes save jobs strictly in issue order on a single
// goroutine. Rapid successive mutations each enqueue their own job, but
// FIFO execution guarantees an older snapshot can never overwrite a newer
// one on the backing store.
type saveLane struct {
	jobs chan saveJob
	done chan struct{}
}

func newSaveLane(ctx context.Context, st store.Store, out chan<- completion) *saveLane {
	l := &saveLane{
		jobs: make(chan saveJob, 128),
		done: make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-l.jobs:
				err := tagBackground(st.Save(ctx, job.identity, job.entries))
				job.wipe()
				select {
				case out <- completion{kind: compSave, epoch: job.epoch, gen: job.gen, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return l
}

func (l *saveLane) enqueue(job saveJob) bool {
	select {
	case l.jobs <- job:
		return true
	default:
		return false
	}
}
