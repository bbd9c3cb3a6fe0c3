package store

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"

	"github.com/cgast/promptreg/pkg/suite"
)

// Bucket names.
const (
	BucketTestCases = "test_cases" // keyed by test case id
	BucketResults   = "results"    // keyed by big-endian sequence number
)

var codec = sonic.ConfigStd

var _ Gateway = (*BoltStore)(nil)

// BoltStore is a bbolt-backed Gateway.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the database at path.
func NewBoltStore(path string, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketTestCases, BucketResults} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	logger.Debug("store opened", "path", path)
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveTestCase(tc suite.TestCase) error {
	if tc.ID == "" {
		return fmt.Errorf("save test case: empty id")
	}
	data, err := codec.Marshal(tc)
	if err != nil {
		return fmt.Errorf("marshal test case %s: %w", tc.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTestCases)).Put([]byte(tc.ID), data)
	})
}

func (s *BoltStore) GetTestCase(id string) (suite.TestCase, error) {
	var tc suite.TestCase
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketTestCases)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("test case %s: %w", id, ErrNotFound)
		}
		return codec.Unmarshal(data, &tc)
	})
	if err != nil {
		return suite.TestCase{}, err
	}
	return tc, nil
}

func (s *BoltStore) ListTestCases() ([]suite.TestCase, error) {
	cases := []suite.TestCase{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTestCases)).ForEach(func(k, v []byte) error {
			var tc suite.TestCase
			if err := codec.Unmarshal(v, &tc); err != nil {
				return fmt.Errorf("unmarshal test case %s: %w", string(k), err)
			}
			cases = append(cases, tc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cases, func(i, j int) bool {
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.Before(cases[j].CreatedAt)
		}
		return cases[i].ID < cases[j].ID
	})
	return cases, nil
}

// DeleteTestCase removes a test case. Its results are kept as history.
func (s *BoltStore) DeleteTestCase(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketTestCases))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("test case %s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) AppendResult(r suite.TestResult) error {
	data, err := codec.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", r.TestID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketResults))
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next result sequence: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
}

func (s *BoltStore) ListResults() ([]suite.TestResult, error) {
	return s.results(func(suite.TestResult) bool { return true })
}

func (s *BoltStore) ResultsForTest(testID string) ([]suite.TestResult, error) {
	return s.results(func(r suite.TestResult) bool { return r.TestID == testID })
}

func (s *BoltStore) results(keep func(suite.TestResult) bool) ([]suite.TestResult, error) {
	results := []suite.TestResult{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketResults)).ForEach(func(k, v []byte) error {
			var r suite.TestResult
			if err := codec.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal result %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if keep(r) {
				results = append(results, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// seqKey encodes a sequence so byte order matches insertion order.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
