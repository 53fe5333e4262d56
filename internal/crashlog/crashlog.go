// Package crashlog guards background goroutines against panics: every
// goroutine the server spawns (reactor loops, executor workers, the
// accept loop) runs under Go, which recovers a panic, writes a crash
// report to crashLogPath, and lets the caller decide what happens to
// the slot that goroutine occupied (the executor recovers task panics
// itself, so its workers survive them).
package crashlog

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

const crashLogPath = "/tmp/kvreactor-crash.log"

// Go launches fn in a new goroutine, naming it for crash reports.
// Panics inside fn are recovered, logged via Report, and swallowed —
// the goroutine simply ends instead of taking the process down.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Report(r, name)
			}
		}()
		fn()
	}()
}

// Report writes a crash report for a recovered panic r from the named
// goroutine. A nil r is a no-op.
func Report(r interface{}, goroutineName string) {
	if r == nil {
		return
	}

	f, err := os.OpenFile(crashLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crashlog: failed to open %s: %v\n", crashLogPath, err)
		f = os.Stderr
	}
	defer f.Close()

	fmt.Fprintf(f, "\n\n--- crash report %s ---\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if goroutineName == "" {
		goroutineName = "main"
	}
	fmt.Fprintf(f, "goroutine: %s\nerror: %v\n\n", goroutineName, r)

	fmt.Fprintf(f, "stack trace:\n")
	f.Write(debug.Stack())

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(f, "\nall goroutines:\n")
	f.Write(buf[:n])

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(f, "\ngoroutines=%d alloc_mb=%d sys_mb=%d gc_runs=%d\n",
		runtime.NumGoroutine(), m.Alloc/1024/1024, m.Sys/1024/1024, m.NumGC)

	if f != os.Stderr {
		fmt.Fprintf(os.Stderr, "kvreactor: recovered panic in %q, see %s\n", goroutineName, crashLogPath)
	}
}
