package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"plannersync/internal/model"
)

const (
	// dataFileName is the fixed key the whole aggregate lives under.
	dataFileName = "planner-data.json"

	// readCacheTTL keeps repeated loads within one tick from re-parsing the
	// document.
	readCacheTTL = 500 * time.Millisecond
)

// Store is the local snapshot store: one JSON document under a fixed key,
// with a short-lived read cache and a record of the last local write so the
// coordinator can skip pulls that would race a fresh edit.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time

	cached      *model.Aggregate
	cachedAt    time.Time
	lastSavedAt time.Time
}

func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	return &Store{
		path: filepath.Join(dataDir, dataFileName),
		now:  time.Now,
	}, nil
}

// Load returns the current aggregate, serving from the read cache when it is
// fresh. A missing document yields an empty aggregate, not an error.
func (s *Store) Load() (*model.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.cachedAt) < readCacheTTL {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// A brand-new device must never out-rank the remote copy as
			// merge base, so the empty snapshot carries a zero stamp.
			agg := model.NewAggregate(time.UnixMilli(0))
			s.cached = agg
			s.cachedAt = s.now()
			return agg, nil
		}
		return nil, errors.Wrap(err, "reading local snapshot")
	}

	var agg model.Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		// A corrupt snapshot must not brick the app; start over and let the
		// next pull repopulate from the remote copy.
		log.Err(err).Msg("local snapshot is corrupt, starting empty")
		agg = *model.NewAggregate(time.UnixMilli(0))
	}
	if agg.WeekNotes == nil {
		agg.WeekNotes = make(map[string]model.WeekNotes)
	}

	s.cached = &agg
	s.cachedAt = s.now()
	return &agg, nil
}

// Save persists the aggregate atomically (temp file + rename) and records
// the write time for the grace-period guard.
func (s *Store) Save(agg *model.Aggregate) error {
	if agg == nil {
		return errors.New("aggregate is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(agg)
	if err != nil {
		return errors.Wrap(err, "encoding local snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".planner-data-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating snapshot temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing local snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing snapshot temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "replacing local snapshot")
	}

	s.cached = agg
	s.cachedAt = s.now()
	s.lastSavedAt = s.now()
	return nil
}

// RecentlySaved reports whether a local write landed within the given window.
// This is the sole ordering mechanism between a pull and an in-flight user
// edit: no lock, only a time-based grace period.
func (s *Store) RecentlySaved(window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastSavedAt.IsZero() && s.now().Sub(s.lastSavedAt) < window
}
