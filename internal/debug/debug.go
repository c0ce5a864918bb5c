// Package debug provides env-gated diagnostic logging that stays off
// stdout, which belongs to the stdio tool transport.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	out    io.Writer
	file   *os.File
	inited bool
)

// Init configures debug output from the CODEIX_DEBUG environment
// variable: unset or "0" disables, "file" writes to a timestamped file
// under the OS temp dir, anything else writes to stderr.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if inited {
		return
	}
	inited = true

	switch os.Getenv("CODEIX_DEBUG") {
	case "", "0":
		return
	case "file":
		dir := filepath.Join(os.TempDir(), "codeix-debug-logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			out = os.Stderr
			return
		}
		name := fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			out = os.Stderr
			return
		}
		file = f
		out = f
	default:
		out = os.Stderr
	}
}

// SetOutput overrides the debug writer. Pass nil to disable.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	inited = true
	out = w
}

// Close flushes and closes the debug log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		err := file.Close()
		file = nil
		out = nil
		return err
	}
	return nil
}

// Logf writes a formatted debug line. No-op unless Init enabled output.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, "[%s] ", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(out, format, args...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Fprintln(out)
	}
}

// Warnf writes a one-line warning to stderr regardless of debug state.
// Used for the rare user-visible conditions: lock contention, flush
// failure.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "codeix: "+format+"\n", args...)
}
