package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const resultsBucket = "parse_results"

// ErrNotFound is returned when a parse result or its file does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for parse history persistence
type DB interface {
	// SaveResult stores a parse result under its ID
	SaveResult(result *ParseResult) error

	// GetResult retrieves a parse result by ID
	GetResult(id string) (*ParseResult, error)

	// ListResults returns every stored parse result
	ListResults() ([]*ParseResult, error)

	// DeleteResult removes a parse result
	DeleteResult(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens or creates the database at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveResult stores a parse result as JSON
func (b *BoltDB) SaveResult(result *ParseResult) error {
	if result.ID == "" {
		return fmt.Errorf("parse result has no id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling parse result: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Put([]byte(result.ID), data)
	})
}

// GetResult retrieves a parse result by ID
func (b *BoltDB) GetResult(id string) (*ParseResult, error) {
	var result ParseResult
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(resultsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: parse result %s", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("unmarshaling parse result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResults returns all parse results in key order
func (b *BoltDB) ListResults() ([]*ParseResult, error) {
	results := make([]*ParseResult, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).ForEach(func(k, v []byte) error {
			var result ParseResult
			if err := json.Unmarshal(v, &result); err != nil {
				return fmt.Errorf("unmarshaling parse result %s: %w", k, err)
			}
			results = append(results, &result)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteResult removes a parse result. Deleting a missing ID is not an error.
func (b *BoltDB) DeleteResult(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
