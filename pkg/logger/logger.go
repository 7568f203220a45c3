package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

type LogBuild struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	console bool
}

type LogData struct {
	writer  io.Writer
	LogFile *lumberjack.Logger
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

// FromPath sends output to a size-rotated file.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel accepts zerolog level names; unknown names keep the current level.
func (build *LogBuild) WithLevel(level string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		build.level = lvl
	}
	return build
}

// Console switches to zerolog's human-readable writer.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = os.Stderr
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile = &lumberjack.Logger{
			Filename:   build.path,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	} else if build.console {
		logData.writer = zerolog.ConsoleWriter{Out: logData.writer, NoColor: true}
	}
	logData.Logger = zerolog.New(logData.writer).Level(build.level).With().Timestamp().Logger()
	return
}

// Close releases the log file, if any.
func (logData *LogData) Close() error {
	if logData.LogFile != nil {
		return logData.LogFile.Close()
	}
	return nil
}

// Nop is the logger used when a component is built without one.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
