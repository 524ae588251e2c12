package client

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"example.com/reactivities/internal/domain"
)

// Backend is the subset of Agent the Store drives.
type Backend interface {
	ListActivities(ctx context.Context, params ListParams) (Page, error)
	GetActivity(ctx context.Context, id string) (Activity, error)
	CreateActivity(ctx context.Context, cmd domain.CreateActivityCommand) error
	EditActivity(ctx context.Context, cmd domain.EditActivityCommand) error
	DeleteActivity(ctx context.Context, id string) error
	Attend(ctx context.Context, id string) error
	Unattend(ctx context.Context, id string) error
}

// State is a snapshot of everything the store holds.
type State struct {
	Activities map[string]Activity
	// Count is the size of the whole filtered list on the server.
	Count     int
	Page      int
	Predicate domain.Predicate
	Loading   bool
	// Submitting is set while a write is in flight; Target names the activity it targets.
	Submitting bool
	Target     string
	Selected   string
	// LastError is the most recent failure, for a transient notification.
	LastError error
}

func (s State) clone() State {
	s.Activities = maps.Clone(s.Activities)
	if s.Activities == nil {
		s.Activities = map[string]Activity{}
	}
	return s
}

// DateGroup holds the activities scheduled on one calendar day.
type DateGroup struct {
	Date       string
	Activities []Activity
}

// Store is an explicit state container. Every operation commits its changes in
// Batch calls, and each Batch notifies subscribers once with a consistent snapshot.
type Store struct {
	backend  Backend
	pageSize int

	commitMu sync.Mutex // serialises commit+notify so subscribers see batches in order
	mu       sync.RWMutex
	state    State
	subs     map[int]func(State)
	nextSub  int
	// filterGen counts predicate changes; it is only touched inside Batch.
	filterGen uint64
}

// NewStore builds a Store over backend. pageSize <= 0 uses the server default.
func NewStore(backend Backend, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &Store{
		backend:  backend,
		pageSize: pageSize,
		state:    State{Activities: map[string]Activity{}},
		subs:     map[int]func(State){},
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn for change notifications and returns its cancel function.
// fn runs synchronously after each batch and must not call Batch itself.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Batch applies fn to the state and then notifies every subscriber once.
func (s *Store) Batch(fn func(*State)) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// LoadActivities fetches the current page under the current predicate and merges it
// into the cached activities. A page that arrives after the predicate changed is discarded.
func (s *Store) LoadActivities(ctx context.Context) error {
	var (
		params ListParams
		gen    uint64
	)
	s.Batch(func(st *State) {
		st.Loading = true
		params = ListParams{Limit: s.pageSize, Offset: st.Page * s.pageSize, Predicate: st.Predicate}
		gen = s.filterGen
	})

	page, err := s.backend.ListActivities(ctx, params)
	s.Batch(func(st *State) {
		st.Loading = false
		if gen != s.filterGen {
			return
		}
		if err != nil {
			st.LastError = err
			return
		}
		for _, a := range page.Activities {
			st.Activities[a.ID] = a
		}
		st.Count = page.ActivityCount
	})
	return err
}

// LoadNextPage advances the page and loads it. It is a no-op on the last page.
func (s *Store) LoadNextPage(ctx context.Context) error {
	advanced := false
	s.Batch(func(st *State) {
		if st.Page+1 < domain.TotalPages(st.Count, s.pageSize) {
			st.Page++
			advanced = true
		}
	})
	if !advanced {
		return nil
	}
	return s.LoadActivities(ctx)
}

// SetPredicate replaces the active filter. It resets the page and drops cached
// activities, since they were loaded under the old filter.
func (s *Store) SetPredicate(p domain.Predicate) {
	s.Batch(func(st *State) {
		s.filterGen++
		st.Predicate = p
		st.Page = 0
		st.Count = 0
		st.Activities = map[string]Activity{}
	})
}

// SelectActivity marks id as selected, fetching it when it is not cached.
func (s *Store) SelectActivity(ctx context.Context, id string) error {
	s.mu.RLock()
	_, cached := s.state.Activities[id]
	s.mu.RUnlock()

	if cached {
		s.Batch(func(st *State) { st.Selected = id })
		return nil
	}

	s.Batch(func(st *State) { st.Loading = true })
	activity, err := s.backend.GetActivity(ctx, id)
	s.Batch(func(st *State) {
		st.Loading = false
		if err != nil {
			st.LastError = err
			return
		}
		st.Activities[id] = activity
		st.Selected = id
	})
	return err
}

// CreateActivity issues the activity ID when cmd has none, creates it and caches
// the stored result. It returns the ID.
func (s *Store) CreateActivity(ctx context.Context, cmd domain.CreateActivityCommand) (string, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	err := s.submit(ctx, cmd.ID, func() error { return s.backend.CreateActivity(ctx, cmd) })
	if err != nil {
		return cmd.ID, err
	}
	if err := s.refresh(ctx, cmd.ID, func(st *State) { st.Count++; st.Selected = cmd.ID }); err != nil {
		return cmd.ID, err
	}
	return cmd.ID, nil
}

// EditActivity applies cmd and refreshes the cached copy.
func (s *Store) EditActivity(ctx context.Context, cmd domain.EditActivityCommand) error {
	if err := s.submit(ctx, cmd.ID, func() error { return s.backend.EditActivity(ctx, cmd) }); err != nil {
		return err
	}
	return s.refresh(ctx, cmd.ID, func(st *State) { st.Selected = cmd.ID })
}

// DeleteActivity removes the activity on the server and from the cache.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	err := s.submit(ctx, id, func() error { return s.backend.DeleteActivity(ctx, id) })
	if err != nil {
		return err
	}
	s.Batch(func(st *State) {
		if _, ok := st.Activities[id]; ok {
			delete(st.Activities, id)
			if st.Count > 0 {
				st.Count--
			}
		}
		if st.Selected == id {
			st.Selected = ""
		}
	})
	return nil
}

// Attend joins the activity and refreshes its attendee list.
func (s *Store) Attend(ctx context.Context, id string) error {
	if err := s.submit(ctx, id, func() error { return s.backend.Attend(ctx, id) }); err != nil {
		return err
	}
	return s.refresh(ctx, id, nil)
}

// Unattend leaves the activity and refreshes its attendee list.
func (s *Store) Unattend(ctx context.Context, id string) error {
	if err := s.submit(ctx, id, func() error { return s.backend.Unattend(ctx, id) }); err != nil {
		return err
	}
	return s.refresh(ctx, id, nil)
}

// ActivitiesByDate groups the cached activities by calendar day, both in date order.
func (s *Store) ActivitiesByDate() []DateGroup {
	s.mu.RLock()
	activities := make([]Activity, 0, len(s.state.Activities))
	for _, a := range s.state.Activities {
		activities = append(activities, a)
	}
	s.mu.RUnlock()

	sort.Slice(activities, func(i, j int) bool {
		if !activities[i].Date.Equal(activities[j].Date) {
			return activities[i].Date.Before(activities[j].Date)
		}
		return activities[i].ID < activities[j].ID
	})

	var groups []DateGroup
	for _, a := range activities {
		day := a.Date.UTC().Format("2006-01-02")
		if n := len(groups); n > 0 && groups[n-1].Date == day {
			groups[n-1].Activities = append(groups[n-1].Activities, a)
			continue
		}
		groups = append(groups, DateGroup{Date: day, Activities: []Activity{a}})
	}
	return groups
}

// TotalPages reports how many pages the current filter spans.
func (s *Store) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalPages(s.state.Count, s.pageSize)
}

// submit runs a write with Submitting/Target set. Local state is left as it was
// on failure; only LastError records it.
func (s *Store) submit(ctx context.Context, target string, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Batch(func(st *State) {
		st.Submitting = true
		st.Target = target
	})
	err := call()
	s.Batch(func(st *State) {
		st.Submitting = false
		st.Target = ""
		if err != nil {
			st.LastError = err
		}
	})
	return err
}

// refresh re-reads one activity into the cache and applies extra in the same batch.
func (s *Store) refresh(ctx context.Context, id string, extra func(*State)) error {
	activity, err := s.backend.GetActivity(ctx, id)
	s.Batch(func(st *State) {
		if err != nil {
			st.LastError = err
			return
		}
		st.Activities[id] = activity
		if extra != nil {
			extra(st)
		}
	})
	return err
}
