// Package debug provides the lightweight, opt-in structured logging shared by
// every pipeline component. It is not a general logging framework: callers that
// need structured sinks, levels, or rotation own that themselves and call into
// this package only for the pipeline's own diagnostic output.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build-time flag, overridable with:
// go build -ldflags "-X github.com/standardbeagle/docuse/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// debugOutput is the writer for debug output (nil means no output).
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file.
var debugFile *os.File

// debugMutex protects access to debug output.
var debugMutex sync.Mutex

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under the
// OS temp directory and returns its path.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "docuse-debug-logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether verbose debug output should be produced.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DOCUSE_DEBUG")
	return v == "1" || v == "true"
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log provides structured debug logging with component names. It is a no-op
// unless debug mode is enabled and an output writer has been configured.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogParse logs parser (C2) activity.
func LogParse(format string, args ...interface{}) { Log("PARSE", format, args...) }

// LogCache logs parse/analysis cache (C3/C6) activity.
func LogCache(format string, args ...interface{}) { Log("CACHE", format, args...) }

// LogAnalysis logs backend/hybrid analyzer (C4/C5) activity.
func LogAnalysis(format string, args ...interface{}) { Log("ANALYSIS", format, args...) }

// LogExecutor logs parallel executor (C7) activity.
func LogExecutor(format string, args ...interface{}) { Log("EXEC", format, args...) }

// LogRewrite logs docstring rewriter (C8) activity.
func LogRewrite(format string, args ...interface{}) { Log("REWRITE", format, args...) }

// LogPipeline logs pipeline (C9) orchestration activity.
func LogPipeline(format string, args ...interface{}) { Log("PIPELINE", format, args...) }

// Warn writes a warning line unconditionally (not gated by debug mode), since
// every error must be logged with its kind, affected path, and a short
// explanation regardless of verbosity.
func Warn(component, format string, args ...interface{}) {
	w := getDebugWriter()
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[WARN:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}
