package kv

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
)

// columnPrefix separates the chain's single key space from any other
// column a future backend might add, the way spec.md §6 describes: "a
// one-byte column prefix separates key spaces in stores that lack native
// column support." goleveldb has no native columns, so every key gets the
// prefix.
const columnPrefix = byte(0)

// LevelDBStore is the durable backend: one directory holding a LevelDB
// instance, matching original_source's LevelDbKvStore.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database rooted at path. A
// corrupted store is a hard fault: the error is returned rather than
// silently recovered, so startup refuses to open it.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *LevelDBStore) Close() error { return s.db.Close() }

func prefixed(key string) []byte {
	b := make([]byte, 0, len(key)+1)
	b = append(b, columnPrefix)
	b = append(b, key...)
	return b
}

func (s *LevelDBStore) Get(key string) ([]byte, bool, error) {
	v, err := s.db.Get(prefixed(key), nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (s *LevelDBStore) Update(ops []WriteOp) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		if op.Remove {
			batch.Delete(prefixed(op.Key))
		} else {
			batch.Put(prefixed(op.Key), op.Value)
		}
	}
	return s.db.Write(batch, nil)
}
