// Package syncer keeps the local cache topped up with classifiable items.
package syncer

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"zooclient/internal/provider"
)

// ItemCounter reports how many classifiable items the cache holds.
// *provider.Provider implements it.
type ItemCounter interface {
	CountClassifiable() (int, error)
}

// Requester is the background-sync engine. RequestSync is the fire-and-
// forget trigger the provider pulls on every read of the next item and
// every mutation; the actual work runs on a single loop goroutine, so any
// number of overlapping requests collapse into at most one pending run.
type Requester struct {
	store          ItemCounter
	source         provider.SubjectSource
	adder          provider.SubjectAdder
	minCachedItems int

	trigger chan struct{}
	done    chan struct{}
	stop    sync.Once
	loop    sync.WaitGroup
}

func New(store ItemCounter, source provider.SubjectSource, adder provider.SubjectAdder, minCachedItems int) *Requester {
	return &Requester{
		store:          store,
		source:         source,
		adder:          adder,
		minCachedItems: minCachedItems,
		trigger:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// RequestSync schedules a top-up run. It never blocks: with a run already
// pending the request is simply absorbed.
func (r *Requester) RequestSync() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start launches the sync loop.
func (r *Requester) Start() {
	r.loop.Add(1)
	go r.run()
}

// Stop terminates the sync loop and waits for it to exit. A download still
// running in the importer is not interrupted.
func (r *Requester) Stop() {
	r.stop.Do(func() { close(r.done) })
	r.loop.Wait()
}

func (r *Requester) run() {
	defer r.loop.Done()
	for {
		select {
		case <-r.done:
			return
		case <-r.trigger:
			r.topUp()
		}
	}
}

// topUp fetches and imports enough subjects to bring the cache back to the
// configured minimum of classifiable items. Failures are logged and
// dropped; the next trigger tries again.
func (r *Requester) topUp() {
	count, err := r.store.CountClassifiable()
	if err != nil {
		log.Printf("sync: counting classifiable items: %v", err)
		return
	}
	missing := r.minCachedItems - count
	if missing <= 0 {
		return
	}

	subjects, err := r.source.RequestMoreItems(missing)
	if err != nil {
		log.Printf("sync: fetching %d subjects: %v", missing, err)
		return
	}
	if len(subjects) == 0 {
		return
	}

	// Async import: the loop must stay responsive while images download.
	if err := r.adder.AddSubjects(subjects, true); err != nil {
		log.Printf("sync: importing %d subjects: %v", len(subjects), err)
		return
	}
	log.Printf("sync: importing %d subjects (cache had %d of %d)", len(subjects), count, r.minCachedItems)
}

// StartScheduler additionally fires a top-up on a cron schedule, so the
// cache refills even when nobody is classifying.
// The schedule is a standard 5-field cron expression (minute hour
// day-of-month month day-of-week), e.g. "0 */6 * * *" for every six hours.
func (r *Requester) StartScheduler(schedule string) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Scheduled sync disabled (prefetch_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid prefetch_schedule '%s': %v — scheduled sync disabled", schedule, err)
		return
	}
	log.Printf("Scheduled sync enabled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)

			select {
			case <-r.done:
				return
			case <-time.After(wait):
				r.RequestSync()
			}
		}
	}()
}
