package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorHandler logs an infrastructure failure and wraps it with message.
// Cancelled requests are logged at debug level only.
func ErrorHandler(err error, message string) error {
	if err == nil {
		return nil
	}

	entry := Logger.WithFields(logrus.Fields{"error": err.Error()})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		entry.Debug(message)
	} else {
		entry.Error(message)
	}
	return fmt.Errorf("%s: %w", message, err)
}
