package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists counters to a dedicated BoltDB file so they survive restarts
type Store struct {
	db    *bolt.DB
	stats *Stats
	mu    sync.Mutex
}

// PersistedStats is the on-disk form of Stats
type PersistedStats struct {
	Counters        map[string]int64 `json:"counters"`
	MinResponseTime int64            `json:"min_response_time"`
	MaxResponseTime int64            `json:"max_response_time"`
	LastSaved       time.Time        `json:"last_saved"`
	FirstStarted    time.Time        `json:"first_started"`
}

// NewStore opens the stats database at dbPath for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{db: db, stats: s}, nil
}

// Load applies previously persisted counters
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var persisted PersistedStats
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	for name, counter := range st.stats.counters() {
		counter.Store(persisted.Counters[name])
	}
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < noMin {
		st.stats.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		st.stats.maxResponseTime.Store(persisted.MaxResponseTime)
	}
	if !persisted.FirstStarted.IsZero() {
		st.stats.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d)", logcolors.LogStats, persisted.Counters["total_requests"])
	return nil
}

// Save writes the current counters to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	persisted := PersistedStats{
		Counters:        make(map[string]int64),
		MinResponseTime: st.stats.minResponseTime.Load(),
		MaxResponseTime: st.stats.maxResponseTime.Load(),
		LastSaved:       time.Now(),
		FirstStarted:    st.stats.StartTime,
	}
	for name, counter := range st.stats.counters() {
		persisted.Counters[name] = counter.Load()
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return errors.New("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// Run saves every interval until ctx is done, then saves once more
func (st *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
	for {
		select {
		case <-ticker.C:
			if err := st.Save(); err != nil {
				log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
			}
		case <-ctx.Done():
			if err := st.Save(); err != nil {
				log.Warnf("%s Failed to save stats on shutdown: %v", logcolors.LogStats, err)
				return nil
			}
			log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
			return nil
		}
	}
}

// Close closes the database
func (st *Store) Close() error {
	return st.db.Close()
}
