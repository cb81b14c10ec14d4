package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pastebin/pkg/domain"
	"pastebin/svc/db"
	"pastebin/svc/util"

	"github.com/pkg/errors"
)

// SQLite keeps the same snapshot as File in two tables. It is useful when the
// save location lives on storage where rename is not atomic.
type SQLite struct {
	db       *db.SQLite
	defaults Defaults
	now      func() time.Time
}

func NewSQLite(sqlDB *db.SQLite, d Defaults) *SQLite {
	return &SQLite{db: sqlDB, defaults: d.orBuiltin(), now: time.Now}
}

// Load treats an empty database as a missing resource.
func (s *SQLite) Load() (domain.State, error) {
	rows, settings, err := s.db.LoadSnapshot(context.Background())
	if err != nil {
		return domain.State{}, errors.Wrapf(ErrCorrupt, "sqlite snapshot: %v", err)
	}
	if len(rows) == 0 && len(settings) == 0 {
		util.Warn().Msg("sqlite snapshot empty, starting with defaults")
		return s.defaults.state(), nil
	}
	records := map[string][]record{}
	for _, r := range rows {
		rec := record{text: r.Text, id: r.UUID}
		if r.CreatedAt.Valid {
			v := r.CreatedAt.Int64
			rec.created = &v
		}
		if r.DeletedAt.Valid {
			v := r.DeletedAt.Int64
			rec.deleted = &v
		}
		if r.ShortURL.Valid {
			v := r.ShortURL.String
			rec.shortURL = &v
		}
		records[r.List] = append(records[r.List], rec)
	}
	st := assemble(records, settings, s.defaults, s.now())
	util.Info().
		Int("active", len(st.Active)).
		Int("pinned", len(st.Pinned)).
		Int("deleted", len(st.Deleted)).
		Msg("history loaded from sqlite")
	return st, nil
}

func (s *SQLite) Save(st domain.State) error {
	rows := make([]db.EntryRow, 0, st.Len())
	for _, l := range lists(st) {
		for i, e := range l.entries {
			r := db.EntryRow{
				List:      l.name,
				Position:  i,
				UUID:      e.ID.String(),
				Text:      e.Text,
				CreatedAt: sql.NullInt64{Int64: e.CreatedAt.UnixMilli(), Valid: true},
			}
			if e.DeletedAt != nil {
				r.DeletedAt = sql.NullInt64{Int64: e.DeletedAt.UnixMilli(), Valid: true}
			}
			if e.ShortURL != nil {
				r.ShortURL = sql.NullString{String: *e.ShortURL, Valid: true}
			}
			rows = append(rows, r)
		}
	}
	settings := map[string]string{
		keyMaxActive:     fmt.Sprint(st.MaxActiveEntries),
		keyRetentionDays: fmt.Sprint(st.MaxDeletedRetentionDays),
	}
	return errors.Wrap(s.db.ReplaceSnapshot(context.Background(), rows, settings), "sqlite save")
}
