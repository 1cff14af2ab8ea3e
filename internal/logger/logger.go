package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelFatal: color.New(color.FgHiRed, color.Bold),
}

var categoryColor = color.New(color.FgCyan, color.Bold)

// Logger writes category-tagged lines to the console and, optionally, to a
// plain-text log file.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	level Level
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FILE.
func NewLogger() *Logger {
	l := &Logger{
		out:   color.Output,
		level: ParseLevel(os.Getenv("LOG_LEVEL")),
	}

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open %s: %v\n", path, err)
		} else {
			l.file = f
		}
	}
	return l
}

// New returns a logger writing to w only. Used by tests.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: w, level: level}
}

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) write(level Level, category, msg string) {
	if level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	name := levelNames[level]

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "%s %s %s %s\n",
		ts,
		levelColors[level].Sprintf("%-5s", name),
		categoryColor.Sprintf("[%s]", category),
		msg,
	)
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %-5s [%s] %s\n", ts, name, category, msg)
	}
}

func (l *Logger) Debug(category, msg string) { l.write(LevelDebug, category, msg) }
func (l *Logger) Info(category, msg string)  { l.write(LevelInfo, category, msg) }
func (l *Logger) Warn(category, msg string)  { l.write(LevelWarn, category, msg) }
func (l *Logger) Error(category, msg string) { l.write(LevelError, category, msg) }

// Fatal logs and exits the process.
func (l *Logger) Fatal(category, msg string) {
	l.write(LevelFatal, category, msg)
	l.Close()
	os.Exit(1)
}

func (l *Logger) LogProcess(process, msg string) {
	l.Info(process, "⚙️  "+msg)
}

func (l *Logger) LogDatabase(operation, table, msg string) {
	l.Debug("DATABASE", fmt.Sprintf("%s %s: %s", operation, table, msg))
}

func (l *Logger) LogKafka(operation, topic, msg string) {
	l.Debug("KAFKA", fmt.Sprintf("%s %s: %s", operation, topic, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.Warn("SECURITY", fmt.Sprintf("%s: %s", event, msg))
}

func (l *Logger) LogTicket(operation, ticketCode, msg string) {
	l.Info("TICKET", fmt.Sprintf("%s %s: %s", operation, ticketCode, msg))
}
