package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/majestrate/slimweb/lib/sync"
)

var mtx sync.Mutex

type logLevel int

const (
	debug = logLevel(0)
	info  = logLevel(1)
	warn  = logLevel(2)
	err   = logLevel(3)
	fatal = logLevel(4)
)

func (l logLevel) Int() int {
	return int(l)
}

func (l logLevel) Name() string {
	switch l {
	case debug:
		return "DBG"
	case info:
		return "NFO"
	case warn:
		return "WRN"
	case err:
		return "ERR"
	case fatal:
		return "FTL"
	default:
		return "???"
	}
}

var levels = map[string]logLevel{
	"debug": debug,
	"info":  info,
	"warn":  warn,
	"err":   err,
	"error": err,
	"fatal": fatal,
}

var level = info

// ErrInvalidLevel is returned by SetLevel for an unknown level name
type ErrInvalidLevel string

func (e ErrInvalidLevel) Error() string {
	return fmt.Sprintf("invalid log level: '%s'", string(e))
}

// SetLevel sets global logger level
func SetLevel(l string) error {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(l))]
	if !ok {
		return ErrInvalidLevel(l)
	}
	mtx.Lock()
	level = lvl
	mtx.Unlock()
	return nil
}

// Level gets the name of the current global log level
func Level() string {
	mtx.Lock()
	defer mtx.Unlock()
	for name, lvl := range levels {
		if lvl == level && name != "error" {
			return name
		}
	}
	return "info"
}

var out io.Writer = os.Stdout

// SetOutput sets logging to output to a writer
func SetOutput(w io.Writer) {
	mtx.Lock()
	out = w
	mtx.Unlock()
}

func log(lvl logLevel, f string, args ...interface{}) {
	mtx.Lock()
	if lvl.Int() < level.Int() {
		mtx.Unlock()
		return
	}
	m := fmt.Sprintf(f, args...)
	fmt.Fprintf(out, "%s[%s] %s\t%s%s\n", lvl.Color(), lvl.Name(), time.Now().Format(time.RFC3339), m, colorReset)
	mtx.Unlock()
	if lvl == fatal {
		panic(m)
	}
}

// Debug prints debug message
func Debug(msg string) {
	log(debug, "%s", msg)
}

// Debugf prints formatted debug message
func Debugf(f string, args ...interface{}) {
	log(debug, f, args...)
}

// Info prints info log message
func Info(msg string) {
	log(info, "%s", msg)
}

// Infof prints formatted info log message
func Infof(f string, args ...interface{}) {
	log(info, f, args...)
}

// Warn prints warn log message
func Warn(msg string) {
	log(warn, "%s", msg)
}

// Warnf prints formatted warn log message
func Warnf(f string, args ...interface{}) {
	log(warn, f, args...)
}

// Error prints error log message
func Error(msg string) {
	log(err, "%s", msg)
}

// Errorf prints formatted error log message
func Errorf(f string, args ...interface{}) {
	log(err, f, args...)
}

// Fatal print fatal error and panic
func Fatal(msg string) {
	log(fatal, "%s", msg)
}

// Fatalf print formatted fatal error and panic
func Fatalf(f string, args ...interface{}) {
	log(fatal, f, args...)
}
