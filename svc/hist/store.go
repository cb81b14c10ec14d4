// Package hist owns the paste history: the active, pinned and deleted lists
// and every transition between them.
//
// All three lists and both limits sit behind one mutex. Traffic is low and a
// single lock keeps the "an entry lives in exactly one list" rule easy to
// check. Every list is ordered newest-first by insertion; the deleted list is
// additionally ordered by descending DeletedAt, which the retention sweep
// depends on.
package hist

import (
	"slices"
	"sync"
	"time"

	"pastebin/metrics"
	"pastebin/pkg/domain"
	"pastebin/svc/util"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

type Store struct {
	mu            sync.Mutex
	active        []domain.Entry
	pinned        []domain.Entry
	deleted       []domain.Entry
	maxActive     int
	retentionDays int
	version       uint64
	now           func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// View is a consistent copy of the three lists taken under the lock.
type View struct {
	Active                  []domain.Entry
	Pinned                  []domain.Entry
	Deleted                 []domain.Entry
	MaxActiveEntries        int
	MaxDeletedRetentionDays int
	Version                 uint64
}

// New builds a store already populated from st. The slices in st are copied.
func New(st domain.State, opts ...Option) *Store {
	s := &Store{
		active:        slices.Clone(st.Active),
		pinned:        slices.Clone(st.Pinned),
		deleted:       slices.Clone(st.Deleted),
		maxActive:     st.MaxActiveEntries,
		retentionDays: st.MaxDeletedRetentionDays,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.publish()
	return s
}

func (s *Store) Paste(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = slices.Insert(s.active, 0, domain.NewEntry(text, s.now()))
	s.enforceCapacity()
	s.changed()
	metrics.PasteCreated.Inc()
	return true
}

func (s *Store) Pin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := take(&s.active, id)
	if !ok {
		return false
	}
	s.pinned = slices.Insert(s.pinned, 0, e)
	s.changed()
	metrics.Transitions.WithLabelValues("pin").Inc()
	return true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := take(&s.active, id)
	if !ok {
		return false
	}
	s.retire(e)
	s.changed()
	metrics.Transitions.WithLabelValues("delete").Inc()
	return true
}

func (s *Store) DeletePin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := take(&s.pinned, id)
	if !ok {
		return false
	}
	s.retire(e)
	s.changed()
	metrics.Transitions.WithLabelValues("delete_pin").Inc()
	return true
}

func (s *Store) Undelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := take(&s.deleted, id)
	if !ok {
		return false
	}
	e.DeletedAt = nil
	s.active = slices.Insert(s.active, 0, e)
	s.enforceCapacity()
	s.changed()
	metrics.Transitions.WithLabelValues("undelete").Inc()
	return true
}

// SetShortURL sets the alias of an active or pinned entry, searching active
// first. An empty value is stored as an empty alias, not removed.
func (s *Store) SetShortURL(id, value string) bool {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range [][]domain.Entry{s.active, s.pinned} {
		if i := indexOf(list, uid); i >= 0 {
			v := value
			list[i].ShortURL = &v
			s.changed()
			return true
		}
	}
	return false
}

// LookupShortURL finds the entry whose alias equals path. Pinned entries
// shadow active ones with the same alias.
func (s *Store) LookupShortURL(path string) (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range [][]domain.Entry{s.pinned, s.active} {
		for _, e := range list {
			if e.ShortURL != nil && *e.ShortURL == path {
				return e, true
			}
		}
	}
	return domain.Entry{}, false
}

func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Active:                  slices.Clone(s.active),
		Pinned:                  slices.Clone(s.pinned),
		Deleted:                 slices.Clone(s.deleted),
		MaxActiveEntries:        s.maxActive,
		MaxDeletedRetentionDays: s.retentionDays,
		Version:                 s.version,
	}
}

// Version changes whenever the lists change. Callers use it as a cache key.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() domain.State {
	return domain.State{
		Active:                  slices.Clone(s.active),
		Pinned:                  slices.Clone(s.pinned),
		Deleted:                 slices.Clone(s.deleted),
		MaxActiveEntries:        s.maxActive,
		MaxDeletedRetentionDays: s.retentionDays,
	}
}

// enforceCapacity moves the oldest active entries to deleted until the
// active list fits. It loops because the limit may be below the current size.
func (s *Store) enforceCapacity() {
	for len(s.active) > s.maxActive && len(s.active) > 0 {
		last := len(s.active) - 1
		e := s.active[last]
		s.active = slices.Delete(s.active, last, last+1)
		s.retire(e)
		metrics.CapacityEvictions.Inc()
		util.Debug().Str("id", e.ID.String()).Msg("active list full, entry moved to deleted")
	}
}

// retire stamps e as deleted, puts it at the front of the deleted list and
// sweeps expired entries from the back. The sweep stops at the first entry
// still inside the retention window.
func (s *Store) retire(e domain.Entry) {
	now := s.now()
	e.DeletedAt = &now
	s.deleted = slices.Insert(s.deleted, 0, e)

	cutoff := now.Add(-time.Duration(s.retentionDays) * day)
	n := len(s.deleted)
	for n > 0 && s.deleted[n-1].DeletedAt.Before(cutoff) {
		n--
	}
	if dropped := len(s.deleted) - n; dropped > 0 {
		clear(s.deleted[n:])
		s.deleted = s.deleted[:n]
		metrics.RetentionEvictions.Add(float64(dropped))
		util.Debug().Int("dropped", dropped).Msg("retention sweep")
	}
}

func (s *Store) changed() {
	s.version++
	s.publish()
}

func (s *Store) publish() {
	metrics.SetListSizes(len(s.active), len(s.pinned), len(s.deleted))
}

// take removes the entry with the given id from *list. Unparseable ids are
// treated as absent.
func take(list *[]domain.Entry, id string) (domain.Entry, bool) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.Entry{}, false
	}
	i := indexOf(*list, uid)
	if i < 0 {
		return domain.Entry{}, false
	}
	e := (*list)[i]
	*list = slices.Delete(*list, i, i+1)
	return e, true
}

func indexOf(list []domain.Entry, id uuid.UUID) int {
	return slices.IndexFunc(list, func(e domain.Entry) bool { return e.ID == id })
}
