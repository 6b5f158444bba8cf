// Command server runs the bitcask key-value store behind the network
// dispatcher described in the wire protocol.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/epokhe/bitcask/engine"
	"github.com/epokhe/bitcask/internal/logging"
	"github.com/epokhe/bitcask/server"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  server -path <data-dir> [-addr host:port] [-engine bitcask|sled]\n")
	os.Exit(1)
}

func main() {
	var (
		dataPath = flag.String("path", "", "path to data directory")
		addr     = flag.String("addr", "127.0.0.1:4000", "listen address")
		kind     = flag.String("engine", "bitcask", "storage backend: bitcask or sled")
		workers  = flag.Int("workers", 0, "worker pool size (default: number of CPUs)")
	)
	flag.Parse()

	if *dataPath == "" {
		usage()
	}

	log := logging.New()

	store, err := engine.Open(*kind, *dataPath)
	if err != nil {
		log.Errorf("could not open %s store at %q: %v", *kind, *dataPath, err)
		os.Exit(1)
	}

	srv := server.New(store, *workers, log)
	log.Infof("using engine %s and serving at address %s", *kind, *addr)

	go func() {
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Errorf("server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("received %v, shutting down", sig)

	if err := srv.Close(); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Errorf("store close error: %v", err)
	}
}
