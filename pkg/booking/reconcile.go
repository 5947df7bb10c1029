package booking

import (
	"context"
	"errors"
	"fmt"
)

type notificationOutcome int

const (
	outcomeIgnored notificationOutcome = iota
	outcomeSettled
	outcomeStillPending
	outcomeFailed
)

// Gateway transaction_status literals the reconciler understands.
const (
	transactionStatusCapture    = "capture"
	transactionStatusSettlement = "settlement"
	transactionStatusPending    = "pending"
	transactionStatusDeny       = "deny"
	transactionStatusExpire     = "expire"
	transactionStatusCancel     = "cancel"
	fraudStatusAccept           = "accept"
)

func outcomeFor(transactionStatus string, fraudStatus string) notificationOutcome {
	switch transactionStatus {
	case transactionStatusCapture:
		if fraudStatus == fraudStatusAccept {
			return outcomeSettled
		}
		return outcomeIgnored
	case transactionStatusSettlement:
		return outcomeSettled
	case transactionStatusPending:
		return outcomeStillPending
	case transactionStatusDeny, transactionStatusExpire, transactionStatusCancel:
		return outcomeFailed
	}
	return outcomeIgnored
}

// ApplyNotification reconciles an asynchronous gateway callback into booking
// and payment state. The signature is verified before anything is read or
// written; re-applying an already-applied terminal notification is a no-op
// success, never a double transition.
func (service *Service) ApplyNotification(ctx context.Context, notification Notification) error {
	if err := service.verifier.VerifyNotification(notification); err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:     operationReconcile,
			BookingNumber: notification.OrderID,
			Error:         err,
		})
		return err
	}

	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		found, err := txStore.GetBookingByNumber(ctx, notification.OrderID)
		if err != nil {
			return err
		}
		payment, err := txStore.GetPaymentByBookingID(ctx, found.ID)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				return fmt.Errorf("%w: booking %s has no payment record", ErrPaymentNotFound, notification.OrderID)
			}
			return err
		}

		switch outcomeFor(notification.TransactionStatus, notification.FraudStatus) {
		case outcomeSettled:
			return service.applySettled(ctx, txStore, found, payment)
		case outcomeFailed:
			return service.applyFailed(ctx, txStore, found, payment)
		case outcomeStillPending, outcomeIgnored:
			return nil
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationReconcile,
		BookingNumber: notification.OrderID,
		Status:        notification.TransactionStatus,
		Error:         operationError,
	})
	return operationError
}

func (service *Service) applySettled(ctx context.Context, txStore Store, found Booking, payment Payment) error {
	if payment.Status != PaymentVerified {
		now := service.nowFn()
		paidAt := payment.PaidAt
		if paidAt == nil {
			paidAt = &now
		}
		if err := txStore.UpdatePaymentStatus(ctx, payment.ID, PaymentVerified, paidAt, nil); err != nil {
			return err
		}
	}
	if found.Status != BookingConfirmed {
		if _, err := txStore.UpdateBookingStatus(ctx, found.ID, []BookingStatus{BookingPending, BookingConfirmed}, BookingConfirmed); err != nil {
			return err
		}
	}
	return nil
}

func (service *Service) applyFailed(ctx context.Context, txStore Store, found Booking, payment Payment) error {
	if found.Status != BookingCancelled {
		if _, err := txStore.UpdateBookingStatus(ctx, found.ID, []BookingStatus{BookingPending, BookingConfirmed}, BookingCancelled); err != nil {
			return err
		}
	}
	if payment.Status != PaymentRejected {
		if err := txStore.UpdatePaymentStatus(ctx, payment.ID, PaymentRejected, payment.PaidAt, nil); err != nil {
			return err
		}
	}
	return nil
}
