package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxActiveEntries        = 20
	DefaultMaxDeletedRetentionDays = 32
)

// Entry is one pasted snippet. ID, Text and CreatedAt never change after
// construction. DeletedAt and ShortURL are replaced, never written through,
// so copies handed out by the store stay stable.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	ShortURL  *string    `json:"short_url,omitempty"`
}

func NewEntry(text string, now time.Time) Entry {
	return Entry{
		ID:        uuid.New(),
		Text:      text,
		CreatedAt: now,
	}
}

func (e Entry) Deleted() bool {
	return e.DeletedAt != nil
}

// Alias returns the short URL, or "" when none is set. Use HasAlias to tell
// an empty alias apart from an absent one.
func (e Entry) Alias() string {
	if e.ShortURL == nil {
		return ""
	}
	return *e.ShortURL
}

func (e Entry) HasAlias() bool {
	return e.ShortURL != nil
}

// State is everything the persistence layer loads and saves.
type State struct {
	Active                  []Entry
	Pinned                  []Entry
	Deleted                 []Entry
	MaxActiveEntries        int
	MaxDeletedRetentionDays int
}

func EmptyState(maxActive, retentionDays int) State {
	return State{
		Active:                  []Entry{},
		Pinned:                  []Entry{},
		Deleted:                 []Entry{},
		MaxActiveEntries:        maxActive,
		MaxDeletedRetentionDays: retentionDays,
	}
}

func (s State) Len() int {
	return len(s.Active) + len(s.Pinned) + len(s.Deleted)
}
