package hist

import (
	"context"
	"time"

	"pastebin/metrics"
	"pastebin/pkg/domain"
	"pastebin/svc/util"

	"github.com/pkg/errors"
)

type Saver interface {
	Save(st domain.State) error
}

// Save writes the current state through sv while holding the store lock, so
// the written state is never torn by a concurrent request. It is safe to call
// from any goroutine, including a signal handler path.
func (s *Store) Save(sv Saver) error {
	if sv == nil {
		return errors.New("no saver configured")
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked()
	if err := sv.Save(st); err != nil {
		metrics.Saves.WithLabelValues("failed").Inc()
		return errors.Wrap(err, "save history")
	}
	metrics.Saves.WithLabelValues("ok").Inc()
	util.Info().
		Int("entries", st.Len()).
		Dur("duration", time.Since(start)).
		Msg("history saved")
	return nil
}

// RunAutosave saves every interval until ctx is done. Versions that were
// already saved are skipped. Failures are logged and retried next tick.
func (s *Store) RunAutosave(ctx context.Context, sv Saver, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().Dur("interval", interval).Msg("autosave worker started")
	saved := s.Version()
	for {
		select {
		case <-ctx.Done():
			util.Info().Msg("autosave worker shutting down")
			return
		case <-ticker.C:
			v := s.Version()
			if v == saved {
				continue
			}
			if err := s.Save(sv); err != nil {
				util.Error().Err(err).Msg("autosave failed")
				continue
			}
			saved = v
		}
	}
}
