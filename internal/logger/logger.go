package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects how a log line is rendered.
type Format int32

const (
	FormatText Format = iota
	FormatJSON
)

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Int32

	mu     sync.Mutex
	logger = stdlog.New(os.Stdout, "", 0)
	closer io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if l, err := ParseLevel(level); err == nil {
		currentLevel.Store(int32(l))
	}
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetFormat switches between "text" and "json" output. Unknown names are ignored.
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "text":
		currentFormat.Store(int32(FormatText))
	case "json":
		currentFormat.Store(int32(FormatJSON))
	}
}

// SetOutput redirects log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Configure applies level, format and output in one call.
//
// Output is "stdout", "stderr" or a file path; files are opened in append mode
// and closed on the next call to Configure.
func Configure(level, format, output string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var w io.Writer
	var c io.Closer
	switch strings.ToLower(output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w, c = f, f
	}

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	logger.SetOutput(w)
	closer = c
	mu.Unlock()

	currentLevel.Store(int32(l))
	SetFormat(format)
	return nil
}

type jsonLine struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func log(level Level, format string, v ...any) {
	if int32(level) < currentLevel.Load() {
		return
	}

	now := time.Now()
	message := fmt.Sprintf(format, v...)

	var line string
	if Format(currentFormat.Load()) == FormatJSON {
		b, err := json.Marshal(jsonLine{
			Time:    now.Format(time.RFC3339Nano),
			Level:   level.String(),
			Message: message,
		})
		if err != nil {
			return
		}
		line = string(b)
	} else {
		line = fmt.Sprintf("[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), level.String(), message)
	}

	mu.Lock()
	logger.Println(line)
	mu.Unlock()
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
