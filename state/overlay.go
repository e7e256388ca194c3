package state

import (
	"errors"
	"sort"

	"apexcore/storage"
)

// KV is the read-write surface the manager needs. Both storage.Database and
// Overlay satisfy it, so the same accessors serve committed reads and staged
// mutations.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Overlay buffers writes on top of a database. Reads see staged writes first
// and fall through to the underlying store. Commit applies every staged op in
// a single atomic batch; dropping the overlay without committing discards the
// mutation entirely.
type Overlay struct {
	db     storage.Database
	writes map[string][]byte // nil entry marks a staged delete
}

// NewOverlay creates an empty write buffer over db.
func NewOverlay(db storage.Database) *Overlay {
	return &Overlay{db: db, writes: make(map[string][]byte)}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o == nil || o.db == nil {
		return nil, errors.New("state: overlay not initialised")
	}
	if value, ok := o.writes[string(key)]; ok {
		if value == nil {
			return nil, storage.ErrKeyNotFound
		}
		return append([]byte(nil), value...), nil
	}
	return o.db.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	if o == nil {
		return errors.New("state: overlay not initialised")
	}
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	if o == nil {
		return errors.New("state: overlay not initialised")
	}
	o.writes[string(key)] = nil
	return nil
}

// Commit flushes the staged writes to the database atomically. The overlay is
// reset afterwards and can be reused.
func (o *Overlay) Commit() error {
	if o == nil || o.db == nil {
		return errors.New("state: overlay not initialised")
	}
	if len(o.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.writes))
	for key := range o.writes {
		keys = append(keys, key)
	}
	// Deterministic application order keeps replays and log diffs stable.
	sort.Strings(keys)
	ops := make([]storage.BatchOp, 0, len(keys))
	for _, key := range keys {
		value := o.writes[key]
		if value == nil {
			ops = append(ops, storage.BatchOp{Key: []byte(key), Delete: true})
			continue
		}
		ops = append(ops, storage.BatchOp{Key: []byte(key), Value: value})
	}
	if err := o.db.Apply(ops); err != nil {
		return err
	}
	o.writes = make(map[string][]byte)
	return nil
}

// Discard drops the staged writes without touching the database.
func (o *Overlay) Discard() {
	if o == nil {
		return
	}
	o.writes = make(map[string][]byte)
}

// Dirty reports whether the overlay holds uncommitted writes.
func (o *Overlay) Dirty() bool {
	return o != nil && len(o.writes) > 0
}
