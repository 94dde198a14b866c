package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"example.com/sorgate/internal/sor"
)

var (
	bucketDocuments = []byte("documents")
	bucketEntries   = []byte("entries")

	// ErrNotFound is returned when no record exists for the requested hash.
	ErrNotFound = errors.New("archive: record not found")
)

// Entry is the catalog row kept per stored decode. The full document lives in
// a separate bucket so listings stay cheap.
type Entry struct {
	Hash         string    `json:"hash"`
	FileName     string    `json:"fileName,omitempty"`
	Size         int       `json:"size"`
	StoredAt     time.Time `json:"storedAt"`
	CableID      string    `json:"cableId,omitempty"`
	FiberID      string    `json:"fiberId,omitempty"`
	WavelengthNM int       `json:"wavelengthNm,omitempty"`
	FiberLengthM float64   `json:"fiberLengthM,omitempty"`
	TotalLossDB  float64   `json:"totalLossDb,omitempty"`
	EventCount   int       `json:"eventCount"`
	ChecksumOK   bool      `json:"checksumOk"`
}

// Store archives decoded documents in a bbolt file keyed by the SHA-256 of
// the raw trace bytes. Re-archiving identical bytes overwrites in place.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocuments); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HashOf returns the archive key for a raw trace buffer.
func HashOf(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Summarize builds the catalog entry for a decoded trace without storing it.
func Summarize(raw []byte, fileName string, doc *sor.Document) Entry {
	entry := Entry{
		Hash:       HashOf(raw),
		FileName:   fileName,
		Size:       len(raw),
		StoredAt:   time.Now().UTC(),
		ChecksumOK: doc.Checksum.Present && doc.Checksum.Match,
	}
	if doc.General != nil {
		entry.CableID = doc.General.CableID
		entry.FiberID = doc.General.FiberID
		entry.WavelengthNM = doc.General.WavelengthNM
	}
	if doc.Summary.FiberLengthKnown {
		entry.FiberLengthM = doc.Summary.FiberLengthM
	}
	if doc.Summary.TotalLossKnown {
		entry.TotalLossDB = doc.Summary.TotalLossDB
	}
	if doc.Events != nil {
		entry.EventCount = len(doc.Events.Events)
	}
	return entry
}

// Put stores a decoded document under the hash of its raw bytes and returns
// the catalog entry.
func (s *Store) Put(raw []byte, fileName string, doc *sor.Document) (Entry, error) {
	var entry Entry
	if s == nil || s.db == nil {
		return entry, errors.New("archive: store is closed")
	}
	if doc == nil {
		return entry, errors.New("archive: nil document")
	}

	entry = Summarize(raw, fileName, doc)

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return entry, fmt.Errorf("encode document: %w", err)
	}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("encode entry: %w", err)
	}

	key := []byte(entry.Hash)
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketDocuments).Put(key, docBytes); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).Put(key, entryBytes)
	})
	if err != nil {
		return entry, fmt.Errorf("store document: %w", err)
	}
	return entry, nil
}

// Get loads the document and catalog entry stored under hash.
func (s *Store) Get(hash string) (*sor.Document, Entry, error) {
	var entry Entry
	if s == nil || s.db == nil {
		return nil, entry, errors.New("archive: store is closed")
	}
	var doc sor.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		key := []byte(hash)
		docBytes := tx.Bucket(bucketDocuments).Get(key)
		entryBytes := tx.Bucket(bucketEntries).Get(key)
		if docBytes == nil || entryBytes == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(docBytes, &doc); err != nil {
			return fmt.Errorf("decode document: %w", err)
		}
		return json.Unmarshal(entryBytes, &entry)
	})
	if err != nil {
		return nil, entry, err
	}
	return &doc, entry, nil
}

// List returns the catalog entries, newest first.
func (s *Store) List() ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("archive: store is closed")
	}
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StoredAt.After(entries[j].StoredAt)
	})
	return entries, nil
}

// Delete removes the record stored under hash.
func (s *Store) Delete(hash string) error {
	if s == nil || s.db == nil {
		return errors.New("archive: store is closed")
	}
	key := []byte(hash)
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketEntries).Get(key) == nil {
			return ErrNotFound
		}
		if err := tx.Bucket(bucketDocuments).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).Delete(key)
	})
}
