package MiniDB

import (
	"errors"
	"sync"

	"github.com/nickyhof/MiniDB/db"
	"github.com/nickyhof/MiniDB/op"
	"github.com/nickyhof/MiniDB/ps"
)

type Instance struct {
	Storage ps.Storage

	catalog *op.Catalog
	once    sync.Once
	err     error
}

// Open loads every table held by storage.
func Open(storage ps.Storage) (*Instance, error) {
	catalog, err := op.OpenCatalog(storage)
	if err != nil {
		return nil, err
	}
	return &Instance{
		Storage: storage,
		catalog: catalog,
	}, nil
}

func (instance *Instance) Engine() *db.Engine {
	return db.NewEngine(instance.catalog)
}

// Close persists every table once more and closes the storage. Calling it
// again returns the first result.
func (instance *Instance) Close() error {
	instance.once.Do(func() {
		instance.err = errors.Join(instance.catalog.Flush(), instance.Storage.Close())
	})
	return instance.err
}
