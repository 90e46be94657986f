package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// log is the global logger instance
	log zerolog.Logger

	// DefaultLevel is the default logging level
	DefaultLevel = "info"

	levels = map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"fatal":    zerolog.FatalLevel,
		"panic":    zerolog.PanicLevel,
		"disabled": zerolog.Disabled,
	}
)

func init() {
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	initLogger(consoleWriter(os.Stderr), DefaultLevel)
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			if ll, ok := i.(string); ok {
				return strings.ToUpper(ll)
			}
			return "???"
		},
	}
}

func initLogger(output io.Writer, levelStr string) {
	level, exists := levels[strings.ToLower(levelStr)]
	if !exists {
		level = zerolog.InfoLevel
		fmt.Fprintf(os.Stderr, "Unknown log level '%s', defaulting to 'info'\n", levelStr)
	}
	zerolog.SetGlobalLevel(level)
	log = zerolog.New(output).With().Timestamp().Logger()
}

// Configure resets the logger with the given level and format ("console" or "json")
func Configure(levelStr, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(format) {
	case "json":
		initLogger(out, levelStr)
	case "", "console":
		initLogger(consoleWriter(out), levelStr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown log format '%s', using console\n", format)
		initLogger(consoleWriter(out), levelStr)
	}
}

// SetLevel changes the logging level
func SetLevel(levelStr string) {
	if level, exists := levels[strings.ToLower(levelStr)]; exists {
		zerolog.SetGlobalLevel(level)
	} else {
		fmt.Fprintf(os.Stderr, "Unknown log level '%s', leaving at current level\n", levelStr)
	}
}

func Debug(msg string, keysAndValues ...interface{}) {
	logEvent(log.Debug(), msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	logEvent(log.Info(), msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	logEvent(log.Warn(), msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	logEvent(log.Error(), msg, keysAndValues...)
}

// Fatal logs and then exits the process
func Fatal(msg string, keysAndValues ...interface{}) {
	logEvent(log.Fatal(), msg, keysAndValues...)
}

// logEvent adds key-value pairs to the event and sends it
func logEvent(event *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			event = event.Interface("orphaned", keysAndValues[i])
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			event = event.AnErr(key, err)
		} else {
			event = event.Interface(key, keysAndValues[i+1])
		}
	}
	event.Msg(msg)
}
