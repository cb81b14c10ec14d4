package hist

import (
	"context"
	"sync"
	"testing"
	"time"

	"pastebin/pkg/domain"

	"github.com/pkg/errors"
)

type memSaver struct {
	mu    sync.Mutex
	saves []domain.State
	err   error
}

func (m *memSaver) Save(st domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves = append(m.saves, st)
	return nil
}

func (m *memSaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func TestSaveWritesCurrentState(t *testing.T) {
	s := newStore(7, 9)
	s.Paste("a")
	s.Paste("b")
	s.Pin(s.Snapshot().Active[0].ID.String())

	sv := &memSaver{}
	if err := s.Save(sv); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st := sv.saves[0]
	assertTexts(t, "active", st.Active, "a")
	assertTexts(t, "pinned", st.Pinned, "b")
	if st.MaxActiveEntries != 7 || st.MaxDeletedRetentionDays != 9 {
		t.Errorf("limits: got %d/%d, want 7/9", st.MaxActiveEntries, st.MaxDeletedRetentionDays)
	}
}

func TestSaveFailureIsReturned(t *testing.T) {
	s := newStore(5, 5)
	sv := &memSaver{err: errors.New("disk full")}
	err := s.Save(sv)
	if err == nil {
		t.Fatal("Save: expected error")
	}
	if errors.Cause(err).Error() != "disk full" {
		t.Errorf("Save: unexpected cause %v", err)
	}
	s.Paste("still works")
	if len(s.Snapshot().Active) != 1 {
		t.Errorf("store unusable after failed save")
	}
	if err := s.Save(nil); err == nil {
		t.Errorf("Save(nil): expected error")
	}
}

func TestSaveDuringConcurrentMutations(t *testing.T) {
	s := newStore(5, 5)
	sv := &memSaver{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Paste("x")
			}
		}()
		go func() {
			defer wg.Done()
			_ = s.Save(sv)
		}()
	}
	wg.Wait()
	for _, st := range sv.saves {
		if len(st.Active) > 5 {
			t.Fatalf("saved torn state with %d active entries", len(st.Active))
		}
	}
}

func TestRunAutosave(t *testing.T) {
	s := newStore(5, 5)
	sv := &memSaver{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunAutosave(ctx, sv, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if sv.count() != 0 {
		t.Errorf("autosave wrote an unchanged store %d times", sv.count())
	}
	s.Paste("changed")
	deadline := time.Now().Add(2 * time.Second)
	for sv.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sv.count() == 0 {
		t.Fatal("autosave never saved after a change")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave did not stop on cancel")
	}
}

func TestRunAutosaveDisabled(t *testing.T) {
	s := newStore(5, 5)
	finished := make(chan struct{})
	go func() {
		s.RunAutosave(context.Background(), &memSaver{}, 0)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("RunAutosave with zero interval should return immediately")
	}
}
