package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

// operationLogger forwards booking operation events to zap.
type operationLogger struct {
	logger *zap.Logger
}

func newOperationLogger(logger *zap.Logger) *operationLogger {
	return &operationLogger{logger: logger}
}

func (opLogger *operationLogger) LogOperation(ctx context.Context, entry booking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.BookingNumber != "" {
		fields = append(fields, zap.String("booking_number", entry.BookingNumber))
	}
	if entry.FieldID != "" {
		fields = append(fields, zap.String("field_id", entry.FieldID))
	}
	if entry.TimeSlotID != "" {
		fields = append(fields, zap.String("time_slot_id", entry.TimeSlotID))
	}
	if entry.Date != "" {
		fields = append(fields, zap.String("booking_date", entry.Date.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if entry.Error != nil {
		opLogger.logger.Warn("booking operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	opLogger.logger.Info("booking operation", fields...)
}
