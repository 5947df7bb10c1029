package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Venue represents the venues table. Reference data; owned by admin tooling.
type Venue struct {
	VenueID   string    `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	OwnerID   *string   `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Venue) TableName() string { return "venues" }

func (venue *Venue) BeforeCreate(tx *gorm.DB) error {
	if venue.VenueID == "" {
		venue.VenueID = uuid.NewString()
	}
	return nil
}

// Field represents the fields table.
type Field struct {
	FieldID   string    `gorm:"type:uuid;primaryKey"`
	VenueID   string    `gorm:"type:uuid;not null;index:idx_fields_venue"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Field) TableName() string { return "fields" }

func (field *Field) BeforeCreate(tx *gorm.DB) error {
	if field.FieldID == "" {
		field.FieldID = uuid.NewString()
	}
	return nil
}

// TimeSlot represents the time_slots table. Times are HH:MM:SS strings so
// lexicographic SQL comparison matches chronological order.
type TimeSlot struct {
	TimeSlotID string    `gorm:"type:uuid;primaryKey"`
	FieldID    string    `gorm:"type:uuid;not null;index:idx_time_slots_field"`
	StartTime  string    `gorm:"size:8;not null"`
	EndTime    string    `gorm:"size:8;not null"`
	Price      int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (TimeSlot) TableName() string { return "time_slots" }

func (slot *TimeSlot) BeforeCreate(tx *gorm.DB) error {
	if slot.TimeSlotID == "" {
		slot.TimeSlotID = uuid.NewString()
	}
	return nil
}

// Booking mirrors the bookings table. The partial unique index over
// (field_id, time_slot_id, booking_date) scoped to non-cancelled statuses is
// the slot-contention guarantee; the service's availability pre-check is only
// an optimization on top of it.
type Booking struct {
	BookingID     string         `gorm:"type:uuid;primaryKey"`
	Number        string         `gorm:"size:50;not null;uniqueIndex:uniq_bookings_number"`
	FieldID       string         `gorm:"type:uuid;not null;index:idx_bookings_field_date,priority:1;index:uniq_bookings_active_slot,unique,priority:1,where:status <> 'cancelled'"`
	TimeSlotID    string         `gorm:"type:uuid;not null;index:uniq_bookings_active_slot,unique,priority:2"`
	UserID        *string        `gorm:"type:uuid"`
	BookingDate   string         `gorm:"size:10;not null;index:idx_bookings_field_date,priority:2;index:uniq_bookings_active_slot,unique,priority:3"`
	StartTime     string         `gorm:"size:8;not null"`
	EndTime       string         `gorm:"size:8;not null"`
	CustomerName  string         `gorm:"not null"`
	CustomerPhone string         `gorm:"size:20;not null"`
	CustomerEmail string         `gorm:"not null"`
	Notes         datatypes.JSON `gorm:"not null"`
	Subtotal      int64          `gorm:"not null"`
	AdminFee      int64          `gorm:"not null"`
	TotalAmount   int64          `gorm:"not null"`
	Status        string         `gorm:"size:20;not null;index:idx_bookings_status"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

func (bookingRow *Booking) BeforeCreate(tx *gorm.DB) error {
	if bookingRow.BookingID == "" {
		bookingRow.BookingID = uuid.NewString()
	}
	if len(bookingRow.Notes) == 0 {
		bookingRow.Notes = datatypes.JSON([]byte(emptyNotesJSON))
	}
	return nil
}

// Payment mirrors the payments table, 1:1 with bookings.
type Payment struct {
	PaymentID  string     `gorm:"type:uuid;primaryKey"`
	BookingID  string     `gorm:"type:uuid;not null;uniqueIndex:uniq_payments_booking"`
	Amount     int64      `gorm:"not null"`
	Method     string     `gorm:"size:20;not null"`
	SnapToken  string     `gorm:"size:500"`
	Status     string     `gorm:"size:20;not null;index:idx_payments_status"`
	PaidAt     *time.Time `gorm:""`
	VerifiedBy *string    `gorm:"type:uuid"`
	Notes      string     `gorm:""`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

func (payment *Payment) BeforeCreate(tx *gorm.DB) error {
	if payment.PaymentID == "" {
		payment.PaymentID = uuid.NewString()
	}
	return nil
}

// Models lists every table for schema migration.
func Models() []any {
	return []any{&Venue{}, &Field{}, &TimeSlot{}, &Booking{}, &Payment{}}
}
