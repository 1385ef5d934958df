package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "lyrics"

var errBucketMissing = errors.New("cache bucket not found")

// Store keeps raw lyrics payloads in BoltDB with an in-memory copy in front of it.
// Values are held compressed in both tiers when compression is enabled.
type Store struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	backupPath         string
	compressionEnabled bool
}

// Entry is the stored form of a cached value
type Entry struct {
	Value    string `json:"value"`
	StoredAt int64  `json:"storedAt"`
}

// Age reports how long ago the entry was written
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.StoredAt, 0))
}

// BackupInfo describes a backup file on disk
type BackupInfo struct {
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	Size      int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStore opens (or creates) the database at dbPath
func NewStore(dbPath, backupPath string, compressionEnabled bool) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	s := &Store{
		db:                 db,
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
	}

	if err := s.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCacheInit, dbPath, compressionEnabled)
	return s, nil
}

func (s *Store) loadToMemory() error {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping unreadable entry %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			s.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory", logcolors.LogCache, count)
	return nil
}

// Get returns the decoded value stored under key
func (s *Store) Get(key string) (string, bool) {
	value, _, ok := s.Lookup(key)
	return value, ok
}

// Lookup is Get plus the time the value was written
func (s *Store) Lookup(key string) (string, time.Time, bool) {
	entry, ok := s.entry(key)
	if !ok {
		return "", time.Time{}, false
	}

	value, err := s.decode(entry.Value)
	if err != nil {
		log.Errorf("%s Error decompressing cache value for key %s: %v", logcolors.LogCache, key, err)
		return "", time.Time{}, false
	}
	return value, time.Unix(entry.StoredAt, 0), true
}

func (s *Store) entry(key string) (Entry, bool) {
	if v, ok := s.memCache.Load(key); ok {
		return v.(Entry), true
	}

	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		data := b.Get([]byte(key))
		if data == nil {
			return os.ErrNotExist
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, false
	}

	s.memCache.Store(key, entry)
	return entry, true
}

// Set writes value under key in both tiers
func (s *Store) Set(key, value string) error {
	encoded, err := s.encode(value)
	if err != nil {
		return fmt.Errorf("failed to compress value for %s: %w", key, err)
	}

	entry := Entry{Value: encoded, StoredAt: time.Now().Unix()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}

	s.memCache.Store(key, entry)
	return nil
}

// Delete removes key from both tiers
func (s *Store) Delete(key string) error {
	s.memCache.Delete(key)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		return b.Delete([]byte(key))
	})
}

// Clear drops every entry
func (s *Store) Clear() error {
	s.memCache.Range(func(key, _ interface{}) bool {
		s.memCache.Delete(key)
		return true
	})

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Range calls fn for every entry until it returns false.
// Entry values are in stored (possibly compressed) form.
func (s *Store) Range(fn func(key string, entry Entry) bool) {
	s.memCache.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(Entry))
	})
}

// Stats returns the number of keys and their approximate size in KB
func (s *Store) Stats() (numKeys int, sizeInKB int) {
	s.memCache.Range(func(k, v interface{}) bool {
		numKeys++
		sizeInKB += len(k.(string)) + len(v.(Entry).Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Backup writes a consistent copy of the database into the backup directory.
// It runs inside a read transaction so writers are not blocked.
func (s *Store) Backup() (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	backupFilePath := filepath.Join(s.backupPath, fmt.Sprintf("cache_backup_%s.db", timestamp))

	log.Infof("%s Creating backup at: %s", logcolors.LogCacheBackup, backupFilePath)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(backupFilePath, 0600)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	log.Infof("%s Backup created successfully: %s", logcolors.LogCacheBackup, backupFilePath)
	return backupFilePath, nil
}

// BackupAndClear backs up the database and then clears it
func (s *Store) BackupAndClear() (string, error) {
	backupPath, err := s.Backup()
	if err != nil {
		return "", err
	}

	if err := s.Clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear cache: %w", err)
	}

	log.Infof("%s Cache cleared successfully (backup: %s)", logcolors.LogCacheClear, backupPath)
	return backupPath, nil
}

// ListBackups returns the .db files in the backup directory
func (s *Store) ListBackups() ([]BackupInfo, error) {
	var backups []BackupInfo

	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warnf("%s Failed to get info for %s: %v", logcolors.LogCacheBackup, entry.Name(), err)
			continue
		}

		backups = append(backups, BackupInfo{
			FileName:  entry.Name(),
			FilePath:  filepath.Join(s.backupPath, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	return backups, nil
}

// DeleteBackup removes one backup file by name
func (s *Store) DeleteBackup(backupFileName string) error {
	if filepath.Base(backupFileName) != backupFileName || filepath.Ext(backupFileName) != ".db" {
		return fmt.Errorf("invalid backup file: %s", backupFileName)
	}

	backupFilePath := filepath.Join(s.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}

	if err := os.Remove(backupFilePath); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	log.Infof("%s Deleted backup: %s", logcolors.LogCacheBackup, backupFileName)
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) encode(value string) (string, error) {
	if !s.compressionEnabled {
		return value, nil
	}
	return utils.Compress(value)
}

func (s *Store) decode(value string) (string, error) {
	if !s.compressionEnabled {
		return value, nil
	}
	return utils.Decompress(value)
}
