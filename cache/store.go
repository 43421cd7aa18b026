package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sync"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/ptnghia-j/ChordMiniApp-sub001/utils"
)

const bucketName = "grids"

// Store is the persistent grid cache: BoltDB on disk fronted by a
// sync.Map so hot lookups never touch the database.
type Store struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	backupPath         string
	compressionEnabled bool
}

// Entry is a stored value. The value is gzip+base64 compressed when
// compression is enabled.
type Entry struct {
	Value string `json:"value"`
}

// NewStore opens (or creates) the cache database and preloads all
// entries into memory.
func NewStore(dbPath, backupPath string, compressionEnabled bool) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %v", err)
	}
	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %v", err)
	}

	s := &Store{
		db:                 db,
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
	}

	if err := s.loadToMemory(); err != nil {
		log.Warnf("[Cache] Failed to preload cache to memory: %v", err)
	}

	log.Infof("[Cache] Grid cache initialized at %s (compression: %v)", dbPath, compressionEnabled)
	return s, nil
}

// loadToMemory fills the in-memory front from disk.
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
				log.Warnf("[Cache] Skipping undecodable entry for key %s: %v", string(k), err)
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

	log.Infof("[Cache] Loaded %d entries from disk to memory", count)
	return nil
}

// Get retrieves a value, memory first, then disk. The returned value
// is decompressed when compression is enabled.
func (s *Store) Get(key string) (string, bool) {
	if entry, ok := s.memCache.Load(key); ok {
		return s.decode(key, entry.(Entry).Value)
	}

	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		value = entry.Value
		s.memCache.Store(key, entry)
		return nil
	})
	if err != nil {
		return "", false
	}

	return s.decode(key, value)
}

func (s *Store) decode(key, value string) (string, bool) {
	if !s.compressionEnabled {
		return value, true
	}
	decompressed, err := utils.DecompressString(value)
	if err != nil {
		log.Errorf("[Cache] Error decompressing value for key %s: %v", key, err)
		return "", false
	}
	return decompressed, true
}

// Set stores a value in memory and on disk.
func (s *Store) Set(key, value string) error {
	finalValue := value
	if s.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			return fmt.Errorf("failed to compress value for key %s: %w", key, err)
		}
		finalValue = compressed
	}

	entry := Entry{Value: finalValue}
	s.memCache.Store(key, entry)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a key from memory and disk.
func (s *Store) Delete(key string) error {
	s.memCache.Delete(key)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Clear removes all entries.
func (s *Store) Clear() error {
	s.memCache.Range(func(key, value interface{}) bool {
		s.memCache.Delete(key)
		return true
	})

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Range iterates over all entries in the memory front.
func (s *Store) Range(fn func(key string, entry Entry) bool) {
	s.memCache.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(Entry))
	})
}

// Stats returns the number of keys and the stored (compressed) size.
func (s *Store) Stats() (numKeys int, sizeInKB int) {
	size := 0
	s.memCache.Range(func(k, v interface{}) bool {
		numKeys++
		size += len(k.(string)) + len(v.(Entry).Value)
		return true
	})
	sizeInKB = size / 1024
	return
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BackupInfo describes one backup file on disk.
type BackupInfo struct {
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	Size      int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backup closes the database, copies its file to a timestamped backup,
// and reopens. Returns the backup file path.
func (s *Store) Backup() (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	backupFilePath := filepath.Join(s.backupPath, fmt.Sprintf("gridcache_backup_%s.db", timestamp))

	log.Infof("[Cache:Backup] Creating backup at: %s", backupFilePath)

	// Close first so every page is flushed before the copy.
	if err := s.db.Close(); err != nil {
		return "", fmt.Errorf("failed to close database for backup: %v", err)
	}

	if err := copyFile(s.dbPath, backupFilePath); err != nil {
		s.reopen()
		return "", fmt.Errorf("failed to copy database file: %v", err)
	}

	if err := s.reopen(); err != nil {
		return "", fmt.Errorf("failed to reopen database after backup: %v", err)
	}

	log.Infof("[Cache:Backup] Backup created successfully: %s", backupFilePath)
	return backupFilePath, nil
}

// BackupAndClear backs up the cache and then empties it.
func (s *Store) BackupAndClear() (string, error) {
	backupPath, err := s.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %v", err)
	}

	if err := s.Clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear cache: %v", err)
	}

	log.Infof("[Cache:Clear] Cache cleared successfully (backup: %s)", backupPath)
	return backupPath, nil
}

// ListBackups returns metadata for every backup file.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	var backups []BackupInfo

	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warnf("[Cache:Backups] Failed to get info for %s: %v", entry.Name(), err)
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

// RestoreFromBackup replaces the live database with a backup file.
func (s *Store) RestoreFromBackup(backupFileName string) error {
	if filepath.Ext(backupFileName) != ".db" {
		return fmt.Errorf("invalid backup file: must be a .db file")
	}

	backupFilePath := filepath.Join(s.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}

	log.Infof("[Cache:Restore] Starting restore from backup: %s", backupFileName)

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close current database: %v", err)
	}

	// Keep the current file around until the restore succeeds.
	preRestore := s.dbPath + ".pre-restore"
	if err := copyFile(s.dbPath, preRestore); err != nil {
		s.reopen()
		return fmt.Errorf("failed to preserve current database: %v", err)
	}

	if err := copyFile(backupFilePath, s.dbPath); err != nil {
		copyFile(preRestore, s.dbPath)
		s.reopen()
		return fmt.Errorf("failed to restore backup: %v", err)
	}

	os.Remove(preRestore)

	if err := s.reopen(); err != nil {
		return fmt.Errorf("failed to reopen database after restore: %v", err)
	}

	log.Infof("[Cache:Restore] Successfully restored from backup: %s", backupFileName)
	return nil
}

// reopen re-establishes the database connection and reloads memory.
func (s *Store) reopen() error {
	db, err := bolt.Open(s.dbPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %v", err)
	}
	s.db = db

	s.memCache.Range(func(key, value interface{}) bool {
		s.memCache.Delete(key)
		return true
	})
	if err := s.loadToMemory(); err != nil {
		log.Warnf("[Cache] Failed to reload cache to memory: %v", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
