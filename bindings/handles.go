package main

import (
	"errors"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nickyhof/MiniDB"
	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/db"
	"github.com/nickyhof/MiniDB/ps"
)

// Handle represents an open database instance
type Handle struct {
	instance *MiniDB.Instance
	engine   *db.Engine
}

var (
	handlesMu  sync.Mutex
	handles    = make(map[int]*Handle)
	nextHandle = 1
)

var errInvalidHandle = errors.New("invalid handle")

// openHandle loads storage and registers the instance. It returns -1 when the
// stored tables cannot be loaded.
func openHandle(storage ps.Storage) int {
	instance, err := MiniDB.Open(storage)
	if err != nil {
		storage.Close()
		return -1
	}

	handlesMu.Lock()
	defer handlesMu.Unlock()

	handle := nextHandle
	nextHandle++
	handles[handle] = &Handle{
		instance: instance,
		engine:   instance.Engine(),
	}
	return handle
}

func lookupHandle(handle int) (*Handle, bool) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	h, ok := handles[handle]
	return h, ok
}

// closeHandle flushes and closes the instance behind handle.
func closeHandle(handle int) error {
	handlesMu.Lock()
	h, ok := handles[handle]
	delete(handles, handle)
	handlesMu.Unlock()

	if !ok {
		return errInvalidHandle
	}
	return h.instance.Close()
}

// execute runs one statement and returns its Outcome as JSON.
func execute(handle int, query string) string {
	var outcome db.Outcome
	if h, ok := lookupHandle(handle); ok {
		outcome = h.engine.Run(query)
	} else {
		outcome = db.Outcome{Kind: db.ErrorOutcome, ErrorKind: core.InternalError, Message: errInvalidHandle.Error()}
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return `{"kind":"error","error_kind":"InternalError","message":"failed to encode outcome"}`
	}
	return string(data)
}
