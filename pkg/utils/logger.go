package utils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

// InitLogger configures the JSON logger. In production logs go to
// logs/app.log next to the module root, elsewhere to stdout.
func InitLogger(level, env string) {
	Logger.SetReportCaller(true)

	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
		},
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)

	Logger.SetOutput(os.Stdout)
	if env != "production" {
		return
	}

	out, err := openLogFile()
	if err != nil {
		Logger.WithError(err).Warn("Failed to log to file, using stdout instead")
		return
	}
	Logger.SetOutput(out)
}

func openLogFile() (io.Writer, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return nil, os.ErrNotExist
	}

	logDir, err := filepath.Abs(filepath.Join(filepath.Dir(currentFile), "../..", "logs"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	return os.OpenFile(filepath.Join(logDir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// RequestLogger returns a log entry tagged with the request id carried by ctx.
func RequestLogger(ctx context.Context) *logrus.Entry {
	if id, ok := ctx.Value(ContextKey("requestId")).(string); ok {
		return Logger.WithField("request_id", id)
	}
	return logrus.NewEntry(Logger)
}
