// SPDX-License-Identifier: MIT
package main

import (
	"os"
	"runtime"

	"microtools/cmd"
	applog "microtools/internal/log"
	"microtools/pkg/build"
)

// main wires the process together; the commands own everything else.
//
// Startup (cold path): build information, runtime settings, flag and
// config parsing. The run command then starts the audio stream (hot path)
// and, on exit, stops it before the last recording is written and the
// transports are closed (cold path again).
func main() {
	// Development builds have no ldflags; they run with default metadata.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info incomplete: %v", err)
	}

	// One thread for the audio callback, one for the writer, UI and I/O.
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(os.Args[1:], os.Stdout); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
