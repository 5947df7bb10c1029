package booking

import "context"

// CompleteElapsed marks confirmed bookings on the given date as completed
// once their slot's end time has passed. It is best-effort hygiene invoked
// from availability reads; callers decide whether a failure matters.
func (service *Service) CompleteElapsed(ctx context.Context, fieldID string, date Date) (int64, error) {
	cutoff := ClockOf(service.nowFn())
	swept, err := service.store.CompleteElapsed(ctx, fieldID, date, cutoff)
	if err != nil || swept > 0 {
		service.logOperation(ctx, OperationLog{
			Operation: operationSweep,
			FieldID:   fieldID,
			Date:      date,
			Error:     err,
		})
	}
	return swept, err
}
