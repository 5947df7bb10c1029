package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Amount is an integer currency amount in the smallest conventional unit.
type Amount int64

// NewAmount validates an amount and ensures it is not negative.
func NewAmount(raw int64) (Amount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// Int64 returns the raw minor-unit value.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// Date is a calendar date in YYYY-MM-DD form. Lexicographic comparison of
// two Date values orders them chronologically.
type Date string

// ParseDate validates and normalizes a calendar date.
func ParseDate(raw string) (Date, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date(parsed.Format("2006-01-02")), nil
}

// DateOf converts a wall-clock instant to its calendar date.
func DateOf(instant time.Time) Date {
	return Date(instant.Format("2006-01-02"))
}

// String returns the YYYY-MM-DD form.
func (date Date) String() string {
	return string(date)
}

// Clock is a time of day in HH:MM:SS form. Lexicographic comparison of two
// Clock values orders them chronologically within a day.
type Clock string

// ParseClock validates and normalizes a time of day.
func ParseClock(raw string) (Clock, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse("15:04:05", trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return Clock(parsed.Format("15:04:05")), nil
}

// ClockOf converts a wall-clock instant to its time of day.
func ClockOf(instant time.Time) Clock {
	return Clock(instant.Format("15:04:05"))
}

// String returns the HH:MM:SS form.
func (clock Clock) String() string {
	return string(clock)
}

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// legacyStatusPaid predates the confirmed/verified vocabulary and may still
// appear in payloads produced by older integrations.
const legacyStatusPaid = "paid"

// ParseBookingStatus validates a booking status literal. The legacy literal
// "paid" is accepted and mapped to BookingConfirmed.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(raw) {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return BookingStatus(raw), nil
	}
	if raw == legacyStatusPaid {
		return BookingConfirmed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
}

// String returns the status literal.
func (status BookingStatus) String() string {
	return string(status)
}

// PaymentStatus defines the payment lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// ParsePaymentStatus validates a payment status literal.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(raw) {
	case PaymentPending, PaymentVerified, PaymentRejected:
		return PaymentStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
}

// String returns the status literal.
func (status PaymentStatus) String() string {
	return string(status)
}

// BlockingStatuses are the booking statuses that make a slot unavailable for
// the same (field, slot, date) key. Completed is included: a completed
// booking for a future date can only be the residue of a same-day race and
// must keep blocking until an operator resolves it.
var BlockingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted}

// ActiveStatuses are the statuses counted when deriving slot availability.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

// Note is one line in a booking's append-only note log.
type Note struct {
	Text   string    `json:"text"`
	Author string    `json:"author,omitempty"`
	At     time.Time `json:"at"`
}

// Booking is one customer's reservation of one (field, time slot, date).
type Booking struct {
	ID            string
	Number        string
	FieldID       string
	TimeSlotID    string
	UserID        *string
	Date          Date
	StartTime     Clock
	EndTime       Clock
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Notes         []Note
	Subtotal      Amount
	AdminFee      Amount
	Total         Amount
	Status        BookingStatus
	CreatedAt     time.Time
}

// IsGuest reports whether the booking was placed without an authenticated user.
func (b Booking) IsGuest() bool {
	return b.UserID == nil
}

// Payment is one payment attempt tied 1:1 to a booking.
type Payment struct {
	ID         string
	BookingID  string
	Amount     Amount
	Method     string
	SnapToken  string
	Status     PaymentStatus
	PaidAt     *time.Time
	VerifiedBy *string
	Notes      string
	CreatedAt  time.Time
}

// TimeSlot is a fixed (field, start, end, price) template bookable on any date.
type TimeSlot struct {
	ID        string
	FieldID   string
	StartTime Clock
	EndTime   Clock
	Price     Amount
}

// Field is a bookable surface inside a venue.
type Field struct {
	ID      string
	VenueID string
	Name    string
}

// Venue groups fields under one owner.
type Venue struct {
	ID      string
	Name    string
	OwnerID *string
}

// SlotAvailability is one row of the availability view for a (field, date).
type SlotAvailability struct {
	SlotID    string
	StartTime Clock
	EndTime   Clock
	Price     Amount
	Available bool
	Past      bool
}

// Pricing is the price breakdown for one booking.
type Pricing struct {
	Subtotal Amount
	AdminFee Amount
	Total    Amount
}

// Notification is the subset of a gateway callback the reconciler depends on.
type Notification struct {
	OrderID           string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	TransactionStatus string
	FraudStatus       string
}

// GatewayTransaction describes one payment to initiate at the gateway.
type GatewayTransaction struct {
	OrderNumber   string
	BookingID     string
	GrossAmount   Amount
	Subtotal      Amount
	AdminFee      Amount
	ItemLabel     string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// PaymentGateway initiates external payment transactions.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, transaction GatewayTransaction) (string, error)
}

// NotificationVerifier authenticates inbound gateway callbacks.
type NotificationVerifier interface {
	VerifyNotification(notification Notification) error
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetVenue(ctx context.Context, venueID string) (Venue, error)
	GetField(ctx context.Context, fieldID string) (Field, error)
	GetTimeSlot(ctx context.Context, timeSlotID string) (TimeSlot, error)
	ListTimeSlots(ctx context.Context, fieldID string) ([]TimeSlot, error)

	BookingNumberExists(ctx context.Context, number string) (bool, error)
	InsertBooking(ctx context.Context, booking *Booking) error
	GetBookingByID(ctx context.Context, bookingID string) (Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, from []BookingStatus, to BookingStatus) (bool, error)
	AppendBookingNote(ctx context.Context, bookingID string, note Note) error
	BookedSlotIDs(ctx context.Context, fieldID string, date Date, statuses []BookingStatus, endingAfter Clock) (map[string]bool, error)
	CompleteElapsed(ctx context.Context, fieldID string, date Date, cutoff Clock) (int64, error)

	InsertPayment(ctx context.Context, payment *Payment) error
	GetPaymentByBookingID(ctx context.Context, bookingID string) (Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, to PaymentStatus, paidAt *time.Time, verifiedBy *string) error
}
