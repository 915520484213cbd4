package logger

import (
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logDir      = "log"
	logFilename = "lngateway.log"
)

var Logger zerolog.Logger
var HttpLogger zerolog.Logger
var logFilePath string
var Writer io.Writer

func Init(logLevel string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	consoleWriter := newConsoleWriter()
	Writer = consoleWriter

	Logger = zerolog.New(consoleWriter).
		With().
		Timestamp().
		Logger()

	// request logs are only kept when a file logger is attached
	HttpLogger = zerolog.New(io.Discard).
		With().
		Timestamp().
		Logger()

	zLevel := ParseLevel(logLevel)

	zerolog.SetGlobalLevel(zLevel)
	Logger = Logger.Level(zLevel)
	HttpLogger = HttpLogger.Level(zLevel)

	if zLevel <= zerolog.DebugLevel {
		buildInfo, _ := debug.ReadBuildInfo()
		Logger = Logger.With().
			Caller().
			Interface("build_info", buildInfo).
			Logger()
		Logger.Debug().Msg("Zerolog caller reporting enabled in debug mode")
	}
}

// ParseLevel maps the numeric LOG_LEVEL setting (0=panic ... 6=trace) to a
// zerolog level. Unknown values fall back to info.
func ParseLevel(logLevel string) zerolog.Level {
	level, err := strconv.Atoi(logLevel)
	if err != nil {
		return zerolog.InfoLevel
	}

	switch level {
	case 6:
		return zerolog.TraceLevel
	case 5:
		return zerolog.DebugLevel
	case 4:
		return zerolog.InfoLevel
	case 3:
		return zerolog.WarnLevel
	case 2:
		return zerolog.ErrorLevel
	case 1:
		return zerolog.FatalLevel
	case 0:
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

func AddFileLogger(workdir string) error {
	logFilePath = filepath.Join(workdir, logDir, logFilename)
	fileLogger := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxAge:     3,
		MaxBackups: 3,
	}

	multi := zerolog.MultiLevelWriter(newConsoleWriter(), fileLogger)
	Writer = multi

	level := Logger.GetLevel()
	Logger = zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Logger()

	HttpLogger = zerolog.New(fileLogger).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}

func GetLogFilePath() string {
	return logFilePath
}

func newConsoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.DateTime,
	}
}
