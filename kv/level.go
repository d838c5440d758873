package kv

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDB is a Store persisted in a leveldb database. Values are JSON
// encoded; keys are big-endian so leveldb's byte order matches the
// numeric key order.
type LevelDB[V any] struct {
	db *leveldb.DB
}

var _ Store[string] = (*LevelDB[string])(nil)

func OpenLevelDB[V any](path string) (*LevelDB[V], error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB[V]{db: db}, nil
}

// Get implements Store
func (s *LevelDB[V]) Get(key uint64) (v V, ok bool, err error) {
	body, err := s.db.Get(keyBytes(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Set implements Store
func (s *LevelDB[V]) Set(key uint64, value V) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Put(keyBytes(key), body, nil)
}

// Delete implements Store
func (s *LevelDB[V]) Delete(key uint64) error {
	return s.db.Delete(keyBytes(key), nil)
}

func (s *LevelDB[V]) Range(f func(key uint64, value V) bool) error {
	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		var v V
		if err := json.Unmarshal(it.Value(), &v); err != nil {
			return err
		}
		if !f(binary.BigEndian.Uint64(it.Key()), v) {
			break
		}
	}
	return it.Error()
}

func (s *LevelDB[V]) Close() error {
	return s.db.Close()
}

func keyBytes(key uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, key)
	return b
}
