package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the service's console/file setup.
//
// Example:
//
//	logger, err := NewLogger(true, "kandinsky.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("server started", zap.String("addr", "127.0.0.1:5000"))
type Logger struct {
	zap *zap.Logger

	isDevelopment bool
	logFilePath   string
}

type options struct {
	level   *zapcore.Level
	file    FileWriterConfig
	console zapcore.WriteSyncer
}

// Option customises NewLogger.
type Option func(*options)

// WithLevel overrides the mode's default level (debug in development, info otherwise).
func WithLevel(level zapcore.Level) Option {
	return func(o *options) { o.level = &level }
}

// WithFileConfig overrides log rotation settings.
func WithFileConfig(cfg FileWriterConfig) Option {
	return func(o *options) { o.file = cfg }
}

// WithConsole replaces stdout as the console destination.
func WithConsole(ws zapcore.WriteSyncer) Option {
	return func(o *options) { o.console = ws }
}

// NewLogger creates a Logger writing to the console and to logFilePath.
// The file is rotated at 100MB, keeping 5 compressed backups for 30 days.
func NewLogger(isDevelopment bool, logFilePath string, opts ...Option) (*Logger, error) {
	o := options{file: DefaultFileWriterConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	if o.level != nil {
		level = *o.level
	}

	var (
		core zapcore.Core
		err  error
	)
	if o.console != nil {
		core = NewMultiCoreWithWriters(level, o.console, NewFileWriterWithConfig(logFilePath, o.file), isDevelopment)
	} else {
		core, err = NewMultiCore(level, logFilePath, o.file, isDevelopment)
		if err != nil {
			return nil, fmt.Errorf("failed to create log core: %w", err)
		}
	}

	return &Logger{
		zap:           zap.New(NewFilterCore(core), zap.AddCaller()),
		isDevelopment: isDevelopment,
		logFilePath:   logFilePath,
	}, nil
}

// Sync flushes buffered entries. Call before exiting.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Fatal logs then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.zap.Fatal(msg, fields...) }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:           l.zap.With(fields...),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Named returns a child logger with a sub-name, e.g. "worker" or "http".
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		zap:           l.zap.Named(name),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Zap returns the underlying zap.Logger for handing to components.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// IsDevelopment reports whether the logger was built in development mode.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the path of the log file.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}
