// Package main builds MiniDB as a C shared library
// (go build -buildmode=c-shared). Every statement result is returned as the
// Outcome JSON of the HTTP API and must be released with minidb_free.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"

	"github.com/nickyhof/MiniDB/ps"
)

//export minidb_open_memory
func minidb_open_memory() C.int {
	return C.int(openHandle(ps.NewMemoryStorage()))
}

//export minidb_open_file
func minidb_open_file(path *C.char) C.int {
	storage, err := ps.OpenFileStorage(C.GoString(path))
	if err != nil {
		return -1
	}
	return C.int(openHandle(storage))
}

//export minidb_open_git
func minidb_open_git(path *C.char) C.int {
	storage, err := ps.OpenGitStorage(C.GoString(path), ps.DefaultIdentity)
	if err != nil {
		return -1
	}
	return C.int(openHandle(storage))
}

//export minidb_close
func minidb_close(handle C.int) C.int {
	if err := closeHandle(int(handle)); err != nil {
		return -1
	}
	return 0
}

//export minidb_execute
func minidb_execute(handle C.int, query *C.char) *C.char {
	return C.CString(execute(int(handle), C.GoString(query)))
}

//export minidb_free
func minidb_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func main() {}
