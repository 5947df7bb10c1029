// Package gormstore persists bookings, payments, and venue reference data
// through GORM, against PostgreSQL or SQLite.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

const (
	constraintActiveSlot  = "uniq_bookings_active_slot"
	emptyNotesJSON        = "[]"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectVenue     = "venue"
	errorSubjectField     = "field"
	errorSubjectSlot      = "time_slot"
	errorSubjectBooking   = "booking"
	errorSubjectPayment   = "payment"
	errorCodeGet          = "get"
	errorCodeList         = "list"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeDuplicate    = "duplicate"
	errorCodeUpdate       = "update"
	errorCodeAppendNote   = "append_note"
	errorCodeComplete     = "complete_elapsed"
)

// Store implements booking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetVenue(ctx context.Context, venueID string) (booking.Venue, error) {
	var model Venue
	err := store.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Venue{}, wrapStoreError(errorSubjectVenue, errorCodeGet, booking.ErrVenueNotFound)
		}
		return booking.Venue{}, wrapStoreError(errorSubjectVenue, errorCodeGet, err)
	}
	return booking.Venue{
		ID:      model.VenueID,
		Name:    model.Name,
		OwnerID: model.OwnerID,
	}, nil
}

func (store *Store) GetField(ctx context.Context, fieldID string) (booking.Field, error) {
	var model Field
	err := store.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Field{}, wrapStoreError(errorSubjectField, errorCodeGet, booking.ErrFieldNotFound)
		}
		return booking.Field{}, wrapStoreError(errorSubjectField, errorCodeGet, err)
	}
	return booking.Field{
		ID:      model.FieldID,
		VenueID: model.VenueID,
		Name:    model.Name,
	}, nil
}

func (store *Store) GetTimeSlot(ctx context.Context, timeSlotID string) (booking.TimeSlot, error) {
	var model TimeSlot
	err := store.db.WithContext(ctx).
		Where("time_slot_id = ?", timeSlotID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.TimeSlot{}, wrapStoreError(errorSubjectSlot, errorCodeGet, booking.ErrSlotNotFound)
		}
		return booking.TimeSlot{}, wrapStoreError(errorSubjectSlot, errorCodeGet, err)
	}
	return mapTimeSlot(model)
}

func (store *Store) ListTimeSlots(ctx context.Context, fieldID string) ([]booking.TimeSlot, error) {
	var rows []TimeSlot
	err := store.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSlot, errorCodeList, err)
	}
	slots := make([]booking.TimeSlot, 0, len(rows))
	for _, row := range rows {
		slot, err := mapTimeSlot(row)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (store *Store) BookingNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return count > 0, nil
}

func (store *Store) InsertBooking(ctx context.Context, record *booking.Booking) error {
	notes, err := marshalNotes(record.Notes)
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	model := Booking{
		BookingID:     record.ID,
		Number:        record.Number,
		FieldID:       record.FieldID,
		TimeSlotID:    record.TimeSlotID,
		UserID:        record.UserID,
		BookingDate:   record.Date.String(),
		StartTime:     record.StartTime.String(),
		EndTime:       record.EndTime.String(),
		CustomerName:  record.CustomerName,
		CustomerPhone: record.CustomerPhone,
		CustomerEmail: record.CustomerEmail,
		Notes:         notes,
		Subtotal:      record.Subtotal.Int64(),
		AdminFee:      record.AdminFee.Int64(),
		TotalAmount:   record.Total.Int64(),
		Status:        record.Status.String(),
		CreatedAt:     record.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isSlotConflict(err) {
		return wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrSlotAlreadyBooked)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	record.ID = model.BookingID
	record.CreatedAt = model.CreatedAt
	return nil
}

func (store *Store) GetBookingByID(ctx context.Context, bookingID string) (booking.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(model)
}

func (store *Store) GetBookingByNumber(ctx context.Context, number string) (booking.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).
		Where("number = ?", number).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(model)
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID string, from []booking.BookingStatus, to booking.BookingStatus) (bool, error) {
	query := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ?", bookingID)
	if len(from) > 0 {
		query = query.Where("status IN ?", statusStrings(from))
	}
	result := query.Update("status", to.String())
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (store *Store) AppendBookingNote(ctx context.Context, bookingID string, note booking.Note) error {
	var model Booking
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wrapStoreError(errorSubjectBooking, errorCodeAppendNote, booking.ErrBookingNotFound)
		}
		return wrapStoreError(errorSubjectBooking, errorCodeAppendNote, err)
	}
	notes, err := unmarshalNotes(model.Notes)
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	notes = append(notes, note)
	raw, err := marshalNotes(notes)
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ?", bookingID).
		Update("notes", raw)
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeAppendNote, result.Error)
	}
	return nil
}

func (store *Store) BookedSlotIDs(ctx context.Context, fieldID string, date booking.Date, statuses []booking.BookingStatus, endingAfter booking.Clock) (map[string]bool, error) {
	query := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("field_id = ? AND booking_date = ?", fieldID, date.String()).
		Where("status IN ?", statusStrings(statuses))
	if endingAfter != "" {
		query = query.Where("end_time > ?", endingAfter.String())
	}
	var slotIDs []string
	if err := query.Pluck("time_slot_id", &slotIDs).Error; err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	booked := make(map[string]bool, len(slotIDs))
	for _, slotID := range slotIDs {
		booked[slotID] = true
	}
	return booked, nil
}

func (store *Store) CompleteElapsed(ctx context.Context, fieldID string, date booking.Date, cutoff booking.Clock) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("field_id = ? AND booking_date = ?", fieldID, date.String()).
		Where("status = ?", booking.BookingConfirmed.String()).
		Where("end_time <= ?", cutoff.String()).
		Update("status", booking.BookingCompleted.String())
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeComplete, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) InsertPayment(ctx context.Context, record *booking.Payment) error {
	model := Payment{
		PaymentID:  record.ID,
		BookingID:  record.BookingID,
		Amount:     record.Amount.Int64(),
		Method:     record.Method,
		SnapToken:  record.SnapToken,
		Status:     record.Status.String(),
		PaidAt:     record.PaidAt,
		VerifiedBy: record.VerifiedBy,
		Notes:      record.Notes,
		CreatedAt:  record.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	record.ID = model.PaymentID
	record.CreatedAt = model.CreatedAt
	return nil
}

func (store *Store) GetPaymentByBookingID(ctx context.Context, bookingID string) (booking.Payment, error) {
	var model Payment
	err := store.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeGet, booking.ErrPaymentNotFound)
		}
		return booking.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	return mapPayment(model)
}

func (store *Store) UpdatePaymentStatus(ctx context.Context, paymentID string, to booking.PaymentStatus, paidAt *time.Time, verifiedBy *string) error {
	updates := map[string]interface{}{"status": to.String()}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	if verifiedBy != nil {
		updates["verified_by"] = verifiedBy
	}
	result := store.db.WithContext(ctx).
		Model(&Payment{}).
		Where("payment_id = ?", paymentID).
		Updates(updates)
	if result.Error != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPayment, errorCodeUpdate, booking.ErrPaymentNotFound)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func mapTimeSlot(row TimeSlot) (booking.TimeSlot, error) {
	startTime, err := booking.ParseClock(row.StartTime)
	if err != nil {
		return booking.TimeSlot{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	endTime, err := booking.ParseClock(row.EndTime)
	if err != nil {
		return booking.TimeSlot{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	price, err := booking.NewAmount(row.Price)
	if err != nil {
		return booking.TimeSlot{}, wrapStoreError(errorSubjectSlot, errorCodeInvalid, err)
	}
	return booking.TimeSlot{
		ID:        row.TimeSlotID,
		FieldID:   row.FieldID,
		StartTime: startTime,
		EndTime:   endTime,
		Price:     price,
	}, nil
}

func mapBooking(row Booking) (booking.Booking, error) {
	date, err := booking.ParseDate(row.BookingDate)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	startTime, err := booking.ParseClock(row.StartTime)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	endTime, err := booking.ParseClock(row.EndTime)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	status, err := booking.ParseBookingStatus(row.Status)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	subtotal, err := booking.NewAmount(row.Subtotal)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	adminFee, err := booking.NewAmount(row.AdminFee)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	total, err := booking.NewAmount(row.TotalAmount)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	notes, err := unmarshalNotes(row.Notes)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking.Booking{
		ID:            row.BookingID,
		Number:        row.Number,
		FieldID:       row.FieldID,
		TimeSlotID:    row.TimeSlotID,
		UserID:        row.UserID,
		Date:          date,
		StartTime:     startTime,
		EndTime:       endTime,
		CustomerName:  row.CustomerName,
		CustomerPhone: row.CustomerPhone,
		CustomerEmail: row.CustomerEmail,
		Notes:         notes,
		Subtotal:      subtotal,
		AdminFee:      adminFee,
		Total:         total,
		Status:        status,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func mapPayment(row Payment) (booking.Payment, error) {
	status, err := booking.ParsePaymentStatus(row.Status)
	if err != nil {
		return booking.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	amount, err := booking.NewAmount(row.Amount)
	if err != nil {
		return booking.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return booking.Payment{
		ID:         row.PaymentID,
		BookingID:  row.BookingID,
		Amount:     amount,
		Method:     row.Method,
		SnapToken:  row.SnapToken,
		Status:     status,
		PaidAt:     row.PaidAt,
		VerifiedBy: row.VerifiedBy,
		Notes:      row.Notes,
		CreatedAt:  row.CreatedAt,
	}, nil
}

func statusStrings(statuses []booking.BookingStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	return values
}

func marshalNotes(notes []booking.Note) (datatypes.JSON, error) {
	if len(notes) == 0 {
		return datatypes.JSON([]byte(emptyNotesJSON)), nil
	}
	raw, err := json.Marshal(notes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func unmarshalNotes(raw datatypes.JSON) ([]booking.Note, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var notes []booking.Note
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func isSlotConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintActiveSlot
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
