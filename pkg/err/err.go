package errprocess

import (
	"errors"
	"fmt"

	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Set log errMsg and return it as an error
func Set(errMsg string, fields ...zap.Field) error {
	logger.Log.Error(errMsg, fields...)
	return errors.New(errMsg)
}

// Wrap log and wrap err with msg, errors.Is still matches err
func Wrap(msg string, err error, fields ...zap.Field) error {
	logger.Log.Error(msg, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", msg, err)
}
