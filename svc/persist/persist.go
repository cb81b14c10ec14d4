// Package persist loads and saves the paste history. Two backends share one
// decoding path: a flat properties file and a SQLite snapshot.
package persist

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"pastebin/pkg/domain"
	"pastebin/svc/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	listActive  = "history"
	listPinned  = "pinnedHistory"
	listDeleted = "deletedHistory"

	keyMaxActive     = "config.max_main_entries"
	keyRetentionDays = "config.max_keep_deleted_days"
)

// ErrCorrupt marks a resource that exists but cannot be read back.
var ErrCorrupt = errors.New("persisted history is corrupt")

type Persister interface {
	Load() (domain.State, error)
	Save(st domain.State) error
}

// Defaults apply when the resource is missing or lacks a limit.
type Defaults struct {
	MaxActiveEntries        int
	MaxDeletedRetentionDays int
}

func (d Defaults) orBuiltin() Defaults {
	if d.MaxActiveEntries <= 0 {
		d.MaxActiveEntries = domain.DefaultMaxActiveEntries
	}
	if d.MaxDeletedRetentionDays <= 0 {
		d.MaxDeletedRetentionDays = domain.DefaultMaxDeletedRetentionDays
	}
	return d
}

func (d Defaults) state() domain.State {
	return domain.EmptyState(d.MaxActiveEntries, d.MaxDeletedRetentionDays)
}

// record is one entry as read from storage, before defaults are applied.
type record struct {
	text     string
	created  *int64
	deleted  *int64
	id       string
	shortURL *string
}

func (r record) entry(list string, now time.Time) domain.Entry {
	e := domain.Entry{
		Text:      r.text,
		CreatedAt: now,
		ShortURL:  r.shortURL,
	}
	if r.created != nil {
		e.CreatedAt = time.UnixMilli(*r.created)
	}
	id, err := uuid.Parse(r.id)
	if err != nil {
		id = uuid.New()
		util.Warn().
			Str("list", list).
			Str("stored", r.id).
			Str("replacement", id.String()).
			Msg("unparseable entry id, using a fresh one")
	}
	e.ID = id
	if list == listDeleted {
		at := now
		if r.deleted != nil {
			at = time.UnixMilli(*r.deleted)
		}
		e.DeletedAt = &at
	}
	return e
}

// assemble turns decoded records into a State. The deleted list is sorted by
// descending deletion time; the sort is stable so ties keep file order.
func assemble(lists map[string][]record, limits map[string]string, d Defaults, now time.Time) domain.State {
	st := d.state()
	st.MaxActiveEntries = intSetting(limits, keyMaxActive, d.MaxActiveEntries)
	st.MaxDeletedRetentionDays = intSetting(limits, keyRetentionDays, d.MaxDeletedRetentionDays)
	for _, r := range lists[listActive] {
		st.Active = append(st.Active, r.entry(listActive, now))
	}
	for _, r := range lists[listPinned] {
		st.Pinned = append(st.Pinned, r.entry(listPinned, now))
	}
	for _, r := range lists[listDeleted] {
		st.Deleted = append(st.Deleted, r.entry(listDeleted, now))
	}
	slices.SortStableFunc(st.Deleted, func(a, b domain.Entry) int {
		return cmp.Compare(b.DeletedAt.UnixMilli(), a.DeletedAt.UnixMilli())
	})
	return st
}

func intSetting(settings map[string]string, key string, fallback int) int {
	raw, ok := settings[key]
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		util.Warn().
			Str("key", key).
			Str("value", raw).
			Int("default", fallback).
			Msg("unusable config value, using default")
		return fallback
	}
	return v
}

func parseMillis(list string, index int, field, raw string, ok bool) *int64 {
	if !ok || raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		util.Warn().
			Str("list", list).
			Int("index", index).
			Str("field", field).
			Str("value", raw).
			Msg("unparseable timestamp, using load time")
		return nil
	}
	return &v
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func lists(st domain.State) []struct {
	name    string
	entries []domain.Entry
} {
	return []struct {
		name    string
		entries []domain.Entry
	}{
		{listActive, st.Active},
		{listPinned, st.Pinned},
		{listDeleted, st.Deleted},
	}
}
