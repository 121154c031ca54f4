// Package logging provides categorized file logging for ollama-chain.
// Each category writes to its own file under <state-dir>/logs/, built on
// zap cores. Logging is a no-op until Initialize is called with debug mode
// enabled, so library consumers pay nothing by default.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, config resolution
	CategorySession Category = "session" // session lifecycle, memory writes
	CategoryPlanner Category = "planner" // decompose/replan/group decisions
	CategoryRouter  Category = "router"  // complexity + model selection
	CategoryAgent   Category = "agent"   // loop iterations, step outcomes
	CategoryTools   Category = "tools"   // tool execution, retries, fallbacks
	CategoryMemory  Category = "memory"  // persistent store reads/writes
	CategoryLLM     Category = "llm"     // model calls, latencies, failures
	CategoryServer  Category = "server"  // job queue HTTP front-end
)

// Options controls logger construction.
type Options struct {
	// Debug enables file logging. When false, every call is a no-op.
	Debug bool

	// Level is the minimum level written to category files
	// ("debug", "info", "warn", "error"). Defaults to "info".
	Level string

	// Console mirrors warn+ entries to stderr. Useful with --verbose.
	Console bool

	// Categories filters which categories log. Empty means all.
	Categories map[string]bool
}

// Logger wraps a category-bound zap sugared logger.
// The zero value is a no-op logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	opts     Options
	minLevel zapcore.Level
)

// Initialize sets up the log directory and options. Call once at startup.
// With Debug disabled this is a cheap no-op and no directory is created.
func Initialize(stateDir string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	loggers = make(map[Category]*Logger)

	switch o.Level {
	case "debug":
		minLevel = zapcore.DebugLevel
	case "warn", "warning":
		minLevel = zapcore.WarnLevel
	case "error":
		minLevel = zapcore.ErrorLevel
	default:
		minLevel = zapcore.InfoLevel
	}

	if !o.Debug {
		logsDir = ""
		return nil
	}
	if stateDir == "" {
		return fmt.Errorf("state directory required when debug logging is enabled")
	}

	logsDir = filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// CloseAll flushes buffered entries. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
}

func categoryEnabled(c Category) bool {
	if !opts.Debug {
		return false
	}
	if len(opts.Categories) == 0 {
		return true
	}
	enabled, ok := opts.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or builds) the logger for a category. Disabled categories
// get a no-op logger so call sites never branch.
func Get(c Category) *Logger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}

	if !categoryEnabled(c) || logsDir == "" {
		l := &Logger{category: c}
		loggers[c] = l
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, c))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		l := &Logger{category: c}
		loggers[c] = l
		return l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(file), minLevel),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			zapcore.WarnLevel,
		))
	}
	z := zap.New(zapcore.NewTee(cores...)).
		Named(string(c)).
		WithOptions(zap.AddStacktrace(zapcore.FatalLevel))

	l := &Logger{category: c, sugar: z.Sugar()}
	loggers[c] = l
	return l
}

// Debug logs a formatted debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs a formatted info message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a formatted warning.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs a formatted error.
func (l *Logger) Error(format string, args ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// Convenience helpers: one Info/Debug pair per category, so call sites
// read as logging.Agent("..."), logging.AgentDebug("...").

func Boot(format string, args ...interface{})    { Get(CategoryBoot).Info(format, args...) }
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }
func Planner(format string, args ...interface{}) { Get(CategoryPlanner).Info(format, args...) }
func Router(format string, args ...interface{})  { Get(CategoryRouter).Info(format, args...) }
func Agent(format string, args ...interface{})   { Get(CategoryAgent).Info(format, args...) }
func Tools(format string, args ...interface{})   { Get(CategoryTools).Info(format, args...) }
func Memory(format string, args ...interface{})  { Get(CategoryMemory).Info(format, args...) }
func LLM(format string, args ...interface{})     { Get(CategoryLLM).Info(format, args...) }
func Server(format string, args ...interface{})  { Get(CategoryServer).Info(format, args...) }

func BootDebug(format string, args ...interface{})    { Get(CategoryBoot).Debug(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }
func RouterDebug(format string, args ...interface{})  { Get(CategoryRouter).Debug(format, args...) }
func AgentDebug(format string, args ...interface{})   { Get(CategoryAgent).Debug(format, args...) }
func ToolsDebug(format string, args ...interface{})   { Get(CategoryTools).Debug(format, args...) }
func MemoryDebug(format string, args ...interface{})  { Get(CategoryMemory).Debug(format, args...) }
func LLMDebug(format string, args ...interface{})     { Get(CategoryLLM).Debug(format, args...) }
func ServerDebug(format string, args ...interface{})  { Get(CategoryServer).Debug(format, args...) }

// Timer measures an operation's duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold warns when the operation exceeded the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
