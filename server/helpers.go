package server

import (
	"errors"
	"runtime"

	"github.com/epokhe/bitcask/engine"
)

func numCPU() int {
	return runtime.NumCPU()
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, engine.ErrKeyNotFound)
}
