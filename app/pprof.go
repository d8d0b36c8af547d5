//go:build pprof

package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
)

const (
	defaultPprofListenAddr = "localhost:6060"
)

func init() {
	addr := os.Getenv("BEQUIC_PPROF_LISTEN")
	if addr == "" {
		addr = defaultPprofListenAddr
	}
	fmt.Fprintf(os.Stderr, "!!! pprof enabled, listening on %s\n", addr)
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			panic(err)
		}
	}()
}
