// Package logs configures the process-wide go-logging backends.
package logs

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:15:04:05.000} [%{module}] [%{shortfunc}] [%{level}] %{message}`,
)

var fileLogFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} [%{module}] [%{shortfunc}] [%{level}] %{message}`,
)

// Setup sends logs to out and, when file is not empty, to a rotated file. level is a
// go-logging level name such as DEBUG or WARNING. It returns the file writer, if any,
// so the caller can close it on exit.
func Setup(out io.Writer, level, file string) (io.Closer, error) {
	lvl, err := logging.LogLevel(strings.ToUpper(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	if out == nil {
		out = os.Stdout
	}

	backends := []logging.Backend{
		logging.NewBackendFormatter(logging.NewLogBackend(out, "", 0), stdoutLogFormat),
	}

	var closer io.Closer
	if file != "" {
		w := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		backends = append(backends, logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), fileLogFormat))
		closer = w
	}

	leveled := logging.SetBackend(backends...)
	leveled.SetLevel(lvl, "")
	return closer, nil
}
