package syncer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"zooclient/internal/domain"
)

type fakeCounter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *fakeCounter) CountClassifiable() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.err
}

type fakeSource struct {
	mu       sync.Mutex
	requests []int
	subjects []domain.Subject
	err      error
}

func (s *fakeSource) RequestMoreItems(count int) ([]domain.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, count)
	return s.subjects, s.err
}

func (s *fakeSource) requestCounts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests...)
}

type fakeAdder struct {
	mu    sync.Mutex
	calls [][]domain.Subject
	async []bool
	done  chan struct{}
}

func (a *fakeAdder) AddSubjects(subjects []domain.Subject, async bool) error {
	a.mu.Lock()
	a.calls = append(a.calls, subjects)
	a.async = append(a.async, async)
	a.mu.Unlock()
	if a.done != nil {
		a.done <- struct{}{}
	}
	return nil
}

func TestTopUpFetchesMissingItems(t *testing.T) {
	counter := &fakeCounter{count: 2}
	source := &fakeSource{subjects: []domain.Subject{
		{SubjectID: "s1", LocationStandard: "http://example.com/1.jpg"},
		{SubjectID: "s2", LocationStandard: "http://example.com/2.jpg"},
		{SubjectID: "s3", LocationStandard: "http://example.com/3.jpg"},
	}}
	adder := &fakeAdder{done: make(chan struct{}, 1)}

	r := New(counter, source, adder, 5)
	r.Start()
	defer r.Stop()

	r.RequestSync()

	select {
	case <-adder.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the import")
	}

	counts := source.requestCounts()
	if len(counts) != 1 || counts[0] != 3 {
		t.Fatalf("expected one fetch of 3 subjects, got %v", counts)
	}
	adder.mu.Lock()
	defer adder.mu.Unlock()
	if len(adder.calls) != 1 || len(adder.calls[0]) != 3 {
		t.Fatalf("expected one import of 3 subjects, got %v", adder.calls)
	}
	if !adder.async[0] {
		t.Fatal("background top-up must import asynchronously")
	}
}

func TestTopUpNoOpWhenCacheFull(t *testing.T) {
	counter := &fakeCounter{count: 5}
	source := &fakeSource{}
	r := New(counter, source, &fakeAdder{}, 5)

	r.topUp()

	if len(source.requestCounts()) != 0 {
		t.Fatal("full cache must not fetch anything")
	}
}

func TestTopUpSwallowsFetchError(t *testing.T) {
	counter := &fakeCounter{count: 0}
	source := &fakeSource{err: errors.New("server down")}
	adder := &fakeAdder{}
	r := New(counter, source, adder, 5)

	r.topUp()

	adder.mu.Lock()
	defer adder.mu.Unlock()
	if len(adder.calls) != 0 {
		t.Fatal("failed fetch must not import anything")
	}
}

func TestRequestSyncNeverBlocks(t *testing.T) {
	r := New(&fakeCounter{count: 5}, &fakeSource{}, &fakeAdder{}, 5)

	// No loop is running; repeated requests must still return immediately.
	for i := 0; i < 10; i++ {
		r.RequestSync()
	}
}

func TestStopTerminatesLoop(t *testing.T) {
	r := New(&fakeCounter{count: 5}, &fakeSource{}, &fakeAdder{}, 5)
	r.Start()

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not terminate the loop")
	}

	// Stop is idempotent.
	r.Stop()
}
