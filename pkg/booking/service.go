package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service contains the booking domain logic over a Store and a payment
// gateway. All writes to bookings and payments go through it.
type Service struct {
	store    Store
	gateway  PaymentGateway
	verifier NotificationVerifier
	nowFn    func() time.Time
	logger   OperationLogger
}

// NewService wires a Service.
func NewService(store Store, gateway PaymentGateway, verifier NotificationVerifier, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: gateway dependency is nil", ErrInvalidServiceConfig)
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: verifier dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, gateway: gateway, verifier: verifier, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateBookingInput carries a checkout request.
type CreateBookingInput struct {
	FieldID       string
	TimeSlotID    string
	Date          Date
	UserID        *string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         string
}

// CreateBookingResult is the outcome of a successful checkout.
type CreateBookingResult struct {
	Booking   Booking
	Payment   Payment
	SnapToken string
}

// CreateBooking reserves a slot and initiates payment. The booking row is
// committed as pending before the gateway call so the external request can
// never be part of the database transaction; the payment row is persisted
// after the gateway returns a session token. If the gateway call fails the
// booking stays pending and retryable.
func (service *Service) CreateBooking(ctx context.Context, input CreateBookingInput) (CreateBookingResult, error) {
	result, err := service.createBooking(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreate,
		BookingNumber: result.Booking.Number,
		FieldID:       input.FieldID,
		TimeSlotID:    input.TimeSlotID,
		Date:          input.Date,
		Amount:        result.Booking.Total,
		Error:         err,
	})
	return result, err
}

func (service *Service) createBooking(ctx context.Context, input CreateBookingInput) (CreateBookingResult, error) {
	if err := validateCreateInput(input); err != nil {
		return CreateBookingResult{}, err
	}
	now := service.nowFn()
	if input.Date < DateOf(now) {
		return CreateBookingResult{}, fmt.Errorf("%w: booking date %s is in the past", ErrValidation, input.Date)
	}

	var (
		created   Booking
		itemLabel string
	)
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		slot, err := txStore.GetTimeSlot(ctx, input.TimeSlotID)
		if err != nil {
			return err
		}
		if slot.FieldID != input.FieldID {
			return fmt.Errorf("%w: slot %s does not belong to field %s", ErrSlotNotFound, input.TimeSlotID, input.FieldID)
		}
		field, err := txStore.GetField(ctx, input.FieldID)
		if err != nil {
			return err
		}
		venue, err := txStore.GetVenue(ctx, field.VenueID)
		if err != nil {
			return err
		}
		itemLabel = venue.Name + " - " + field.Name

		// Pre-check is an optimization; the partial unique index is the
		// guarantee and surfaces as ErrSlotAlreadyBooked from InsertBooking.
		active, err := txStore.BookedSlotIDs(ctx, input.FieldID, input.Date, BlockingStatuses, "")
		if err != nil {
			return err
		}
		if active[input.TimeSlotID] {
			return ErrSlotAlreadyBooked
		}

		number, err := generateBookingNumber(ctx, txStore)
		if err != nil {
			return err
		}
		pricing := Quote(slot.Price)

		var notes []Note
		if trimmed := strings.TrimSpace(input.Notes); trimmed != "" {
			notes = append(notes, Note{Text: trimmed, At: now})
		}
		created = Booking{
			Number:        number,
			FieldID:       input.FieldID,
			TimeSlotID:    input.TimeSlotID,
			UserID:        input.UserID,
			Date:          input.Date,
			StartTime:     slot.StartTime,
			EndTime:       slot.EndTime,
			CustomerName:  strings.TrimSpace(input.CustomerName),
			CustomerPhone: strings.TrimSpace(input.CustomerPhone),
			CustomerEmail: strings.TrimSpace(input.CustomerEmail),
			Notes:         notes,
			Subtotal:      pricing.Subtotal,
			AdminFee:      pricing.AdminFee,
			Total:         pricing.Total,
			Status:        BookingPending,
			CreatedAt:     now,
		}
		return txStore.InsertBooking(ctx, &created)
	})
	if err != nil {
		return CreateBookingResult{}, err
	}

	// Network call to the gateway happens outside any transaction.
	token, err := service.gateway.CreateTransaction(ctx, GatewayTransaction{
		OrderNumber:   created.Number,
		BookingID:     created.ID,
		GrossAmount:   created.Total,
		Subtotal:      created.Subtotal,
		AdminFee:      created.AdminFee,
		ItemLabel:     itemLabel,
		CustomerName:  created.CustomerName,
		CustomerEmail: created.CustomerEmail,
		CustomerPhone: created.CustomerPhone,
	})
	if err != nil {
		return CreateBookingResult{Booking: created}, err
	}

	payment := Payment{
		BookingID: created.ID,
		Amount:    created.Total,
		Method:    DefaultPaymentMethod,
		SnapToken: token,
		Status:    PaymentPending,
		CreatedAt: service.nowFn(),
	}
	if err := service.store.InsertPayment(ctx, &payment); err != nil {
		return CreateBookingResult{Booking: created}, err
	}
	return CreateBookingResult{Booking: created, Payment: payment, SnapToken: token}, nil
}

// CancelBooking cancels a pending booking and rejects its payment. Bookings
// past pending, or with a verified payment, are refused.
func (service *Service) CancelBooking(ctx context.Context, bookingNumber string) (Booking, error) {
	var cancelled Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		found, err := txStore.GetBookingByNumber(ctx, bookingNumber)
		if err != nil {
			return err
		}
		if found.Status != BookingPending {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, found.Status)
		}
		payment, err := txStore.GetPaymentByBookingID(ctx, found.ID)
		hasPayment := err == nil
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return err
		}
		if hasPayment && payment.Status == PaymentVerified {
			return ErrAlreadyPaid
		}
		updated, err := txStore.UpdateBookingStatus(ctx, found.ID, []BookingStatus{BookingPending}, BookingCancelled)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: booking is no longer pending", ErrInvalidTransition)
		}
		if hasPayment && payment.Status != PaymentRejected {
			if err := txStore.UpdatePaymentStatus(ctx, payment.ID, PaymentRejected, nil, nil); err != nil {
				return err
			}
		}
		cancelled, err = txStore.GetBookingByID(ctx, found.ID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		BookingNumber: bookingNumber,
		Error:         operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return cancelled, nil
}

// OverrideBookingStatus is the administrative manual override. Any target
// status is accepted without a transition table; confirming verifies the
// payment and cancelling rejects it. Notes are appended with an
// administrative marker, never replaced.
func (service *Service) OverrideBookingStatus(ctx context.Context, bookingID string, newStatus BookingStatus, notes string, actorID string) (Booking, error) {
	var updated Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := ParseBookingStatus(newStatus.String()); err != nil {
			return err
		}
		found, err := txStore.GetBookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := txStore.UpdateBookingStatus(ctx, found.ID, nil, newStatus); err != nil {
			return err
		}
		payment, err := txStore.GetPaymentByBookingID(ctx, found.ID)
		hasPayment := err == nil
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return err
		}
		if hasPayment {
			switch newStatus {
			case BookingConfirmed:
				if payment.Status != PaymentVerified {
					paidAt := payment.PaidAt
					if paidAt == nil {
						now := service.nowFn()
						paidAt = &now
					}
					verifiedBy := &actorID
					if actorID == "" {
						verifiedBy = nil
					}
					if err := txStore.UpdatePaymentStatus(ctx, payment.ID, PaymentVerified, paidAt, verifiedBy); err != nil {
						return err
					}
				}
			case BookingCancelled:
				if payment.Status != PaymentRejected {
					if err := txStore.UpdatePaymentStatus(ctx, payment.ID, PaymentRejected, nil, nil); err != nil {
						return err
					}
				}
			}
		}
		if trimmed := strings.TrimSpace(notes); trimmed != "" {
			note := Note{
				Text:   trimmed,
				Author: adminNoteAuthorPrefix + actorID,
				At:     service.nowFn(),
			}
			if err := txStore.AppendBookingNote(ctx, found.ID, note); err != nil {
				return err
			}
		}
		updated, err = txStore.GetBookingByID(ctx, found.ID)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationOverride,
		BookingNumber: updated.Number,
		Status:        newStatus.String(),
		Error:         operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return updated, nil
}

// BookingSnapshot is a booking together with its payment, if any.
type BookingSnapshot struct {
	Booking Booking
	Payment *Payment
}

// BookingStatus returns the current booking and payment state for a booking
// number.
func (service *Service) BookingStatus(ctx context.Context, bookingNumber string) (BookingSnapshot, error) {
	found, err := service.store.GetBookingByNumber(ctx, bookingNumber)
	if err != nil {
		return BookingSnapshot{}, err
	}
	payment, err := service.store.GetPaymentByBookingID(ctx, found.ID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return BookingSnapshot{Booking: found}, nil
		}
		return BookingSnapshot{}, err
	}
	return BookingSnapshot{Booking: found, Payment: &payment}, nil
}

// BookingVenue reports the venue that owns the booking's field.
func (service *Service) BookingVenue(ctx context.Context, bookingID string) (string, error) {
	found, err := service.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	field, err := service.store.GetField(ctx, found.FieldID)
	if err != nil {
		return "", err
	}
	return field.VenueID, nil
}

func validateCreateInput(input CreateBookingInput) error {
	var missing []string
	if strings.TrimSpace(input.FieldID) == "" {
		missing = append(missing, "field_id")
	}
	if strings.TrimSpace(input.TimeSlotID) == "" {
		missing = append(missing, "time_slot_id")
	}
	if input.Date == "" {
		missing = append(missing, "booking_date")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		missing = append(missing, "customer_phone")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		missing = append(missing, "customer_email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !strings.Contains(input.CustomerEmail, "@") {
		return fmt.Errorf("%w: customer_email is not an email address", ErrValidation)
	}
	return nil
}
