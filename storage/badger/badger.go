/*
Package badger implements a chunked array store driver that keeps zarr
array keys inside a BadgerDB key-value store instead of a directory of
files.  Badger's transactional writes give the same all-or-nothing chunk
visibility the resumable pipeline requires from any store.
*/
package badger

import (
	"errors"
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/blockflow/blockflow"
	"github.com/janelia-flyem/blockflow/storage"
	"github.com/janelia-flyem/blockflow/storage/zarr"
)

const (
	// DefaultSyncWrites is true if all writes are synced to disk, making
	// the db resilient at cost of speed.
	DefaultSyncWrites = false
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		blockflow.Errorf("Unable to make semver in badger: %v\n", err)
	}
	storage.RegisterEngine(Engine{"badger", "BadgerDB-backed zarr array", ver})
}

// --- Engine implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

func parseConfig(config blockflow.Config) (path, compressor string, err error) {
	path, found, err := config.GetString("path")
	if err != nil {
		return
	}
	if !found {
		err = fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
		return
	}
	compressor, _, err = config.GetString("compressor")
	return
}

func openDB(path string, sync bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithSyncWrites(sync)
	opts.Logger = nil
	return badger.Open(opts)
}

// CreateStore creates a new badger-backed array at the configured path.
func (e Engine) CreateStore(config blockflow.Config, shape, chunkSize blockflow.TCZYX) (storage.ChunkStore, error) {
	path, compressor, err := parseConfig(config)
	if err != nil {
		return nil, err
	}
	codec, err := zarr.CodecByName(compressor)
	if err != nil {
		return nil, err
	}
	db, err := openDB(path, DefaultSyncWrites)
	if err != nil {
		return nil, err
	}
	array, err := zarr.NewArray(&kvBackend{db}, shape, chunkSize, codec)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &store{Array: array, db: db}, nil
}

// OpenStore opens an existing badger-backed array, returning
// storage.ErrStoreNotFound if no database exists at the configured path.
func (e Engine) OpenStore(config blockflow.Config) (storage.ChunkStore, error) {
	path, _, err := parseConfig(config)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no BadgerDB at %q", storage.ErrStoreNotFound, path)
	}
	db, err := openDB(path, DefaultSyncWrites)
	if err != nil {
		return nil, err
	}
	array, err := zarr.OpenArray(&kvBackend{db})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &store{Array: array, db: db}, nil
}

// store wraps a zarr array so Close also closes the database.
type store struct {
	*zarr.Array
	db *badger.DB
}

func (s *store) Close() error {
	return s.db.Close()
}

// --- zarr.Backend implementation over badger ------

type kvBackend struct {
	db *badger.DB
}

func (b *kvBackend) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", zarr.ErrKeyNotFound, key)
	}
	return value, err
}

func (b *kvBackend) Put(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *kvBackend) List() ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}
