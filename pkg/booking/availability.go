package booking

import (
	"context"
	"fmt"
)

// Availability derives, for every time slot of a field, whether it can still
// be booked on the given date. Querying today's date first sweeps elapsed
// bookings so stale rows cannot linger as blockers; a sweep failure is
// logged and never fails the read.
func (service *Service) Availability(ctx context.Context, venueID string, fieldID string, date Date) ([]SlotAvailability, error) {
	venue, err := service.store.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	field, err := service.store.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if field.VenueID != venue.ID {
		return nil, fmt.Errorf("%w: field %s does not belong to venue %s", ErrFieldNotFound, fieldID, venueID)
	}

	slots, err := service.store.ListTimeSlots(ctx, fieldID)
	if err != nil {
		return nil, err
	}

	now := service.nowFn()
	today := DateOf(now)
	currentClock := ClockOf(now)

	var active map[string]bool
	switch {
	case date < today:
		// Entirely in the past; nothing blocks.
	case date == today:
		if _, sweepErr := service.CompleteElapsed(ctx, fieldID, date); sweepErr != nil {
			service.logOperation(ctx, OperationLog{
				Operation: operationAvailability,
				FieldID:   fieldID,
				Date:      date,
				Error:     sweepErr,
			})
		}
		active, err = service.store.BookedSlotIDs(ctx, fieldID, date, ActiveStatuses, currentClock)
		if err != nil {
			return nil, err
		}
	default:
		active, err = service.store.BookedSlotIDs(ctx, fieldID, date, ActiveStatuses, "")
		if err != nil {
			return nil, err
		}
	}

	availability := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		past := date < today || (date == today && slot.EndTime <= currentClock)
		availability = append(availability, SlotAvailability{
			SlotID:    slot.ID,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Price:     slot.Price,
			Available: !active[slot.ID],
			Past:      past,
		})
	}
	return availability, nil
}
