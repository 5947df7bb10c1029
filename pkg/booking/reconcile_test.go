package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func settlementNotification(number string) Notification {
	return Notification{
		OrderID:           number,
		StatusCode:        "200",
		GrossAmount:       "155000.00",
		SignatureKey:      "sig",
		TransactionStatus: "settlement",
	}
}

func TestApplyNotificationSettlementConfirmsBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})
	created := mustCreateBooking(test, service, store)

	if err := service.ApplyNotification(context.Background(), settlementNotification(created.Booking.Number)); err != nil {
		test.Fatalf("apply settlement: %v", err)
	}

	if store.mustBooking(test, created.Booking.ID).Status != BookingConfirmed {
		test.Fatalf("expected confirmed booking")
	}
	payment := store.mustPaymentFor(test, created.Booking.ID)
	if payment.Status != PaymentVerified {
		test.Fatalf("expected verified payment, got %s", payment.Status)
	}
	if payment.PaidAt == nil || !payment.PaidAt.Equal(fixedNow) {
		test.Fatalf("expected paid_at %v, got %v", fixedNow, payment.PaidAt)
	}
}

func TestApplyNotificationSettlementIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})
	created := mustCreateBooking(test, service, store)
	notification := settlementNotification(created.Booking.Number)

	if err := service.ApplyNotification(context.Background(), notification); err != nil {
		test.Fatalf("first apply: %v", err)
	}
	firstPaidAt := *store.mustPaymentFor(test, created.Booking.ID).PaidAt

	// Simulate time passing before the duplicate delivery.
	later := fixedNow.Add(45 * time.Minute)
	service.nowFn = func() time.Time { return later }

	if err := service.ApplyNotification(context.Background(), notification); err != nil {
		test.Fatalf("second apply: %v", err)
	}
	payment := store.mustPaymentFor(test, created.Booking.ID)
	if !payment.PaidAt.Equal(firstPaidAt) {
		test.Fatalf("paid_at moved on duplicate delivery: %v != %v", payment.PaidAt, firstPaidAt)
	}
	if store.mustBooking(test, created.Booking.ID).Status != BookingConfirmed {
		test.Fatalf("booking must remain confirmed")
	}
}

func TestApplyNotificationCaptureRequiresAcceptedFraudStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})
	created := mustCreateBooking(test, service, store)

	notification := settlementNotification(created.Booking.Number)
	notification.TransactionStatus = "capture"
	notification.FraudStatus = "challenge"

	if err := service.ApplyNotification(context.Background(), notification); err != nil {
		test.Fatalf("apply capture/challenge: %v", err)
	}
	if store.mustBooking(test, created.Booking.ID).Status != BookingPending {
		test.Fatalf("challenged capture must not confirm")
	}

	notification.FraudStatus = "accept"
	if err := service.ApplyNotification(context.Background(), notification); err != nil {
		test.Fatalf("apply capture/accept: %v", err)
	}
	if store.mustBooking(test, created.Booking.ID).Status != BookingConfirmed {
		test.Fatalf("accepted capture must confirm")
	}
}

func TestApplyNotificationFailureStatusesCancel(test *testing.T) {
	test.Parallel()
	for _, transactionStatus := range []string{"deny", "expire", "cancel"} {
		transactionStatus := transactionStatus
		test.Run(transactionStatus, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})
			created := mustCreateBooking(test, service, store)

			notification := settlementNotification(created.Booking.Number)
			notification.TransactionStatus = transactionStatus

			if err := service.ApplyNotification(context.Background(), notification); err != nil {
				test.Fatalf("apply %s: %v", transactionStatus, err)
			}
			if store.mustBooking(test, created.Booking.ID).Status != BookingCancelled {
				test.Fatalf("expected cancelled booking")
			}
			if store.mustPaymentFor(test, created.Booking.ID).Status != PaymentRejected {
				test.Fatalf("expected rejected payment")
			}
		})
	}
}

func TestApplyNotificationPendingLeavesStateAlone(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})
	created := mustCreateBooking(test, service, store)

	notification := settlementNotification(created.Booking.Number)
	notification.TransactionStatus = "pending"

	if err := service.ApplyNotification(context.Background(), notification); err != nil {
		test.Fatalf("apply pending: %v", err)
	}
	if store.mustBooking(test, created.Booking.ID).Status != BookingPending {
		test.Fatalf("pending notification must not change booking state")
	}
	if store.mustPaymentFor(test, created.Booking.ID).Status != PaymentPending {
		test.Fatalf("pending notification must not change payment state")
	}
}

func TestApplyNotificationInvalidSignatureMutatesNothing(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	verifier := &stubVerifier{err: ErrInvalidSignature}
	service := mustNewService(test, store, &stubGateway{token: "tok"}, verifier)
	created := mustCreateBooking(test, service, store)

	err := service.ApplyNotification(context.Background(), settlementNotification(created.Booking.Number))
	if !errors.Is(err, ErrInvalidSignature) {
		test.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if store.mustBooking(test, created.Booking.ID).Status != BookingPending {
		test.Fatalf("rejected notification must not change booking state")
	}
	if store.mustPaymentFor(test, created.Booking.ID).Status != PaymentPending {
		test.Fatalf("rejected notification must not change payment state")
	}
}

func TestApplyNotificationUnknownOrder(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, &stubGateway{token: "tok"}, &stubVerifier{})

	err := service.ApplyNotification(context.Background(), settlementNotification("KSHIRMISSING"))
	if !errors.Is(err, ErrBookingNotFound) {
		test.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestApplyNotificationBookingWithoutPayment(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	gateway := &stubGateway{err: ErrGatewayUnavailable}
	service := mustNewService(test, store, gateway, &stubVerifier{})
	result, _ := service.CreateBooking(context.Background(), validCreateInput(test))

	err := service.ApplyNotification(context.Background(), settlementNotification(result.Booking.Number))
	if !errors.Is(err, ErrPaymentNotFound) {
		test.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
