package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

type createBookingRequest struct {
	FieldID       string `json:"field_id"`
	TimeSlotID    string `json:"time_slot_id"`
	BookingDate   string `json:"booking_date"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
	Notes         string `json:"notes"`
}

type overrideStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type callbackRequest struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

type bookingPayload struct {
	ID            string    `json:"id"`
	Number        string    `json:"booking_number"`
	FieldID       string    `json:"field_id"`
	TimeSlotID    string    `json:"time_slot_id"`
	BookingDate   string    `json:"booking_date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerEmail string    `json:"customer_email"`
	Subtotal      int64     `json:"subtotal"`
	AdminFee      int64     `json:"admin_fee"`
	Total         int64     `json:"total_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type paymentPayload struct {
	ID         string     `json:"id"`
	BookingID  string     `json:"booking_id"`
	Amount     int64      `json:"amount"`
	Method     string     `json:"method"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	VerifiedBy *string    `json:"verified_by,omitempty"`
}

type slotPayload struct {
	SlotID    string `json:"time_slot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Price     int64  `json:"price"`
	Available bool   `json:"is_available"`
	Past      bool   `json:"is_past"`
}

func (server *Server) handleCreateBooking(ctx *gin.Context) {
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	date, err := booking.ParseDate(request.BookingDate)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	input := booking.CreateBookingInput{
		FieldID:       request.FieldID,
		TimeSlotID:    request.TimeSlotID,
		Date:          date,
		CustomerName:  request.CustomerName,
		CustomerPhone: request.CustomerPhone,
		CustomerEmail: request.CustomerEmail,
		Notes:         request.Notes,
	}
	if caller, ok := callerFrom(ctx); ok {
		subject := caller.Subject
		input.UserID = &subject
	}
	result, err := server.service.CreateBooking(ctx.Request.Context(), input)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	server.cache.Invalidate(ctx.Request.Context(), result.Booking.FieldID, result.Booking.Date)
	ctx.JSON(http.StatusCreated, gin.H{
		"booking":    mapBookingPayload(result.Booking),
		"payment":    mapPaymentPayload(result.Payment),
		"snap_token": result.SnapToken,
	})
}

func (server *Server) handleBookingStatus(ctx *gin.Context) {
	snapshot, err := server.service.BookingStatus(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	response := gin.H{"booking": mapBookingPayload(snapshot.Booking)}
	if snapshot.Payment != nil {
		response["payment"] = mapPaymentPayload(*snapshot.Payment)
	}
	ctx.JSON(http.StatusOK, response)
}

func (server *Server) handleCancelBooking(ctx *gin.Context) {
	cancelled, err := server.service.CancelBooking(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	server.cache.Invalidate(ctx.Request.Context(), cancelled.FieldID, cancelled.Date)
	ctx.JSON(http.StatusOK, gin.H{"booking": mapBookingPayload(cancelled)})
}

func (server *Server) handlePaymentCallback(ctx *gin.Context) {
	var request callbackRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	notification := booking.Notification{
		OrderID:           request.OrderID,
		StatusCode:        request.StatusCode,
		GrossAmount:       request.GrossAmount,
		SignatureKey:      request.SignatureKey,
		TransactionStatus: request.TransactionStatus,
		FraudStatus:       request.FraudStatus,
	}
	if err := server.service.ApplyNotification(ctx.Request.Context(), notification); err != nil {
		server.respondError(ctx, err)
		return
	}
	if snapshot, err := server.service.BookingStatus(ctx.Request.Context(), request.OrderID); err == nil {
		server.cache.Invalidate(ctx.Request.Context(), snapshot.Booking.FieldID, snapshot.Booking.Date)
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (server *Server) handleSlots(ctx *gin.Context) {
	date, err := booking.ParseDate(ctx.Query("date"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	venueID := ctx.Param("venue_id")
	fieldID := ctx.Param("field_id")

	if payload, ok := server.cache.Get(ctx.Request.Context(), fieldID, date); ok {
		ctx.Data(http.StatusOK, "application/json", payload)
		return
	}

	slots, err := server.service.Availability(ctx.Request.Context(), venueID, fieldID, date)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]slotPayload, 0, len(slots))
	for _, slot := range slots {
		payloads = append(payloads, slotPayload{
			SlotID:    slot.SlotID,
			StartTime: slot.StartTime.String(),
			EndTime:   slot.EndTime.String(),
			Price:     slot.Price.Int64(),
			Available: slot.Available,
			Past:      slot.Past,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"date": date.String(), "slots": payloads})
	if rendered, marshalErr := renderJSON(gin.H{"date": date.String(), "slots": payloads}); marshalErr == nil {
		server.cache.Set(ctx.Request.Context(), fieldID, date, rendered)
	}
}

func (server *Server) handleOverrideStatus(ctx *gin.Context) {
	caller, ok := callerFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request overrideStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	newStatus, err := booking.ParseBookingStatus(request.Status)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	bookingID := ctx.Param("id")

	venueID, err := server.service.BookingVenue(ctx.Request.Context(), bookingID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	if !caller.canManageVenue(venueID) {
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "not allowed to manage this venue"))
		return
	}

	updated, err := server.service.OverrideBookingStatus(ctx.Request.Context(), bookingID, newStatus, request.Notes, caller.Subject)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	server.cache.Invalidate(ctx.Request.Context(), updated.FieldID, updated.Date)
	ctx.JSON(http.StatusOK, gin.H{"booking": mapBookingPayload(updated)})
}

// respondError translates domain errors to HTTP statuses. Gateway failures
// collapse to a generic 500 so upstream detail never leaks to callers.
func (server *Server) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidClock),
		errors.Is(err, booking.ErrInvalidBookingStatus),
		errors.Is(err, booking.ErrInvalidNotification):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse("validation_failed", err.Error()))
	case errors.Is(err, booking.ErrInvalidTransition):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse("invalid_transition", err.Error()))
	case errors.Is(err, booking.ErrVenueNotFound),
		errors.Is(err, booking.ErrFieldNotFound),
		errors.Is(err, booking.ErrSlotNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrPaymentNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		ctx.JSON(http.StatusConflict, errorResponse("slot_already_booked", "the slot is already booked for that date"))
	case errors.Is(err, booking.ErrAlreadyPaid):
		ctx.JSON(http.StatusConflict, errorResponse("already_paid", "the booking has a verified payment"))
	case errors.Is(err, booking.ErrInvalidSignature):
		ctx.JSON(http.StatusForbidden, errorResponse("invalid_signature", "signature verification failed"))
	case errors.Is(err, booking.ErrGatewayUnavailable),
		errors.Is(err, booking.ErrGatewayRejected),
		errors.Is(err, booking.ErrGatewayProtocol):
		server.logger.Error("payment gateway failure", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("payment_gateway_error", "payment session could not be created"))
	default:
		server.logger.Error("unhandled error", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "internal server error"))
	}
}

func mapBookingPayload(record booking.Booking) bookingPayload {
	return bookingPayload{
		ID:            record.ID,
		Number:        record.Number,
		FieldID:       record.FieldID,
		TimeSlotID:    record.TimeSlotID,
		BookingDate:   record.Date.String(),
		StartTime:     record.StartTime.String(),
		EndTime:       record.EndTime.String(),
		CustomerName:  record.CustomerName,
		CustomerPhone: record.CustomerPhone,
		CustomerEmail: record.CustomerEmail,
		Subtotal:      record.Subtotal.Int64(),
		AdminFee:      record.AdminFee.Int64(),
		Total:         record.Total.Int64(),
		Status:        record.Status.String(),
		CreatedAt:     record.CreatedAt,
	}
}

func mapPaymentPayload(record booking.Payment) paymentPayload {
	return paymentPayload{
		ID:         record.ID,
		BookingID:  record.BookingID,
		Amount:     record.Amount.Int64(),
		Method:     record.Method,
		Status:     record.Status.String(),
		PaidAt:     record.PaidAt,
		VerifiedBy: record.VerifiedBy,
	}
}

func renderJSON(value any) ([]byte, error) {
	return json.Marshal(value)
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
