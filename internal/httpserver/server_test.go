package httpserver

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kashiralabs/fieldbook/internal/midtrans"
	"github.com/kashiralabs/fieldbook/internal/store/gormstore"
	"github.com/kashiralabs/fieldbook/pkg/booking"
)

const (
	testServerKey  = "SB-Mid-server-testkey"
	testSigningKey = "test-signing-key"
	testSnapToken  = "snap-token-test"
)

var fixedNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

type stubGateway struct {
	token string
	err   error
}

func (gateway *stubGateway) CreateTransaction(_ context.Context, _ booking.GatewayTransaction) (string, error) {
	if gateway.err != nil {
		return "", gateway.err
	}
	return gateway.token, nil
}

type fixture struct {
	server  *Server
	venueID string
	fieldID string
	slotID  string
}

func newFixture(test *testing.T) *fixture {
	test.Helper()

	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/fieldbook.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := database.AutoMigrate(gormstore.Models()...); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}

	venue := gormstore.Venue{Name: "Kashira Arena", CreatedAt: fixedNow}
	if err := database.Create(&venue).Error; err != nil {
		test.Fatalf("seed venue: %v", err)
	}
	field := gormstore.Field{VenueID: venue.VenueID, Name: "Lapangan A", CreatedAt: fixedNow}
	if err := database.Create(&field).Error; err != nil {
		test.Fatalf("seed field: %v", err)
	}
	slot := gormstore.TimeSlot{
		FieldID:   field.FieldID,
		StartTime: "18:00:00",
		EndTime:   "19:00:00",
		Price:     150000,
		CreatedAt: fixedNow,
	}
	if err := database.Create(&slot).Error; err != nil {
		test.Fatalf("seed slot: %v", err)
	}

	verifier, err := midtrans.NewClient(midtrans.Config{ServerKey: testServerKey})
	if err != nil {
		test.Fatalf("verifier: %v", err)
	}
	service, err := booking.NewService(
		gormstore.New(database),
		&stubGateway{token: testSnapToken},
		verifier,
		func() time.Time { return fixedNow },
	)
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	server, err := New(Config{AuthSigningKey: testSigningKey}, service, zap.NewNop(), nil)
	if err != nil {
		test.Fatalf("server: %v", err)
	}
	return &fixture{
		server:  server,
		venueID: venue.VenueID,
		fieldID: field.FieldID,
		slotID:  slot.TimeSlotID,
	}
}

func (f *fixture) do(test *testing.T, method string, path string, body any, token string) *httptest.ResponseRecorder {
	test.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			test.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.server.Router().ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func signToken(test *testing.T, subject string, role string, venueIDs []string) string {
	test.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  fixedNow.Add(time.Hour).Unix(),
	}
	if venueIDs != nil {
		claims["venue_ids"] = venueIDs
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		test.Fatalf("sign token: %v", err)
	}
	return signed
}

func callbackSignature(orderID string, statusCode string, grossAmount string) string {
	digest := sha512.Sum512([]byte(orderID + statusCode + grossAmount + testServerKey))
	return hex.EncodeToString(digest[:])
}

func (f *fixture) createBooking(test *testing.T) (string, string) {
	test.Helper()
	recorder := f.do(test, http.MethodPost, "/api/v1/bookings", map[string]any{
		"field_id":       f.fieldID,
		"time_slot_id":   f.slotID,
		"booking_date":   "2026-03-20",
		"customer_name":  "Budi Santoso",
		"customer_phone": "081234567890",
		"customer_email": "budi@example.com",
	}, "")
	if recorder.Code != http.StatusCreated {
		test.Fatalf("create booking status %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	record := payload["booking"].(map[string]any)
	number, _ := record["booking_number"].(string)
	id, _ := record["id"].(string)
	if number == "" || id == "" {
		test.Fatalf("missing booking number or id in %v", payload)
	}
	if token, _ := payload["snap_token"].(string); token != testSnapToken {
		test.Fatalf("unexpected snap token %v", payload["snap_token"])
	}
	return number, id
}

func TestHealthz(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	recorder := f.do(test, http.MethodGet, "/healthz", nil, "")
	if recorder.Code != http.StatusOK {
		test.Fatalf("healthz status %d", recorder.Code)
	}
}

func TestCheckoutAndSettlementFlow(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	number, _ := f.createBooking(test)

	statusRec := f.do(test, http.MethodGet, "/api/v1/bookings/"+number+"/status", nil, "")
	if statusRec.Code != http.StatusOK {
		test.Fatalf("status endpoint %d: %s", statusRec.Code, statusRec.Body.String())
	}
	payload := decodeBody(test, statusRec)
	if got := payload["booking"].(map[string]any)["status"]; got != "pending" {
		test.Fatalf("expected pending booking, got %v", got)
	}

	callbackRec := f.do(test, http.MethodPost, "/api/v1/payments/callback", map[string]any{
		"order_id":           number,
		"status_code":        "200",
		"gross_amount":       "155000.00",
		"signature_key":      callbackSignature(number, "200", "155000.00"),
		"transaction_status": "settlement",
	}, "")
	if callbackRec.Code != http.StatusOK {
		test.Fatalf("callback status %d: %s", callbackRec.Code, callbackRec.Body.String())
	}

	statusRec = f.do(test, http.MethodGet, "/api/v1/bookings/"+number+"/status", nil, "")
	payload = decodeBody(test, statusRec)
	if got := payload["booking"].(map[string]any)["status"]; got != "confirmed" {
		test.Fatalf("expected confirmed after settlement, got %v", got)
	}
	payment := payload["payment"].(map[string]any)
	if payment["status"] != "verified" {
		test.Fatalf("expected verified payment, got %v", payment["status"])
	}
	if payment["paid_at"] == nil {
		test.Fatalf("expected paid_at to be set")
	}
}

func TestCallbackRejectsForgedSignature(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	number, _ := f.createBooking(test)

	recorder := f.do(test, http.MethodPost, "/api/v1/payments/callback", map[string]any{
		"order_id":           number,
		"status_code":        "200",
		"gross_amount":       "155000.00",
		"signature_key":      callbackSignature(number, "200", "1.00"),
		"transaction_status": "settlement",
	}, "")
	if recorder.Code != http.StatusForbidden {
		test.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}

	statusRec := f.do(test, http.MethodGet, "/api/v1/bookings/"+number+"/status", nil, "")
	payload := decodeBody(test, statusRec)
	if got := payload["booking"].(map[string]any)["status"]; got != "pending" {
		test.Fatalf("forged callback must not mutate the booking, got %v", got)
	}
}

func TestCreateBookingSlotConflict(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.createBooking(test)

	recorder := f.do(test, http.MethodPost, "/api/v1/bookings", map[string]any{
		"field_id":       f.fieldID,
		"time_slot_id":   f.slotID,
		"booking_date":   "2026-03-20",
		"customer_name":  "Siti Rahma",
		"customer_phone": "081299988877",
		"customer_email": "siti@example.com",
	}, "")
	if recorder.Code != http.StatusConflict {
		test.Fatalf("expected 409, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if code := payload["error"].(map[string]any)["code"]; code != "slot_already_booked" {
		test.Fatalf("unexpected error code %v", code)
	}
}

func TestCreateBookingValidationError(test *testing.T) {
	test.Parallel()
	f := newFixture(test)

	recorder := f.do(test, http.MethodPost, "/api/v1/bookings", map[string]any{
		"field_id":       f.fieldID,
		"time_slot_id":   f.slotID,
		"booking_date":   "2026-03-20",
		"customer_name":  "",
		"customer_phone": "081234567890",
		"customer_email": "budi@example.com",
	}, "")
	if recorder.Code != http.StatusUnprocessableEntity {
		test.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestCancelBooking(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	number, _ := f.createBooking(test)

	recorder := f.do(test, http.MethodPost, "/api/v1/bookings/"+number+"/cancel", nil, "")
	if recorder.Code != http.StatusOK {
		test.Fatalf("cancel status %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if got := payload["booking"].(map[string]any)["status"]; got != "cancelled" {
		test.Fatalf("expected cancelled, got %v", got)
	}

	missing := f.do(test, http.MethodPost, "/api/v1/bookings/KSHIRMISSING/cancel", nil, "")
	if missing.Code != http.StatusNotFound {
		test.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestSlotsEndpoint(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.createBooking(test)

	path := "/api/v1/venues/" + f.venueID + "/fields/" + f.fieldID + "/slots?date=2026-03-20"
	recorder := f.do(test, http.MethodGet, path, nil, "")
	if recorder.Code != http.StatusOK {
		test.Fatalf("slots status %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	slots := payload["slots"].([]any)
	if len(slots) != 1 {
		test.Fatalf("expected one slot, got %d", len(slots))
	}
	slot := slots[0].(map[string]any)
	if slot["is_available"] != false || slot["is_past"] != false {
		test.Fatalf("booked future slot mismarked: %v", slot)
	}

	invalid := f.do(test, http.MethodGet, "/api/v1/venues/"+f.venueID+"/fields/"+f.fieldID+"/slots?date=20-03-2026", nil, "")
	if invalid.Code != http.StatusUnprocessableEntity {
		test.Fatalf("expected 422 for malformed date, got %d", invalid.Code)
	}
}

func TestAdminOverrideAuthorization(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	_, bookingID := f.createBooking(test)
	body := map[string]any{"status": "confirmed", "notes": "bayar tunai di lokasi"}
	path := "/api/v1/admin/bookings/" + bookingID + "/status"

	if recorder := f.do(test, http.MethodPatch, path, body, ""); recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	outsider := signToken(test, "admin-2", "admin", []string{"some-other-venue"})
	if recorder := f.do(test, http.MethodPatch, path, body, outsider); recorder.Code != http.StatusForbidden {
		test.Fatalf("expected 403 for foreign venue admin, got %d", recorder.Code)
	}

	manager := signToken(test, "admin-1", "admin", []string{f.venueID})
	recorder := f.do(test, http.MethodPatch, path, body, manager)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200 for venue admin, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if got := payload["booking"].(map[string]any)["status"]; got != "confirmed" {
		test.Fatalf("expected confirmed, got %v", got)
	}
}

func TestAdminOverrideSuperAdmin(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	_, bookingID := f.createBooking(test)

	root := signToken(test, "root-1", "super_admin", nil)
	recorder := f.do(test, http.MethodPatch, "/api/v1/admin/bookings/"+bookingID+"/status",
		map[string]any{"status": "cancelled"}, root)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200 for super admin, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if got := payload["booking"].(map[string]any)["status"]; got != "cancelled" {
		test.Fatalf("expected cancelled, got %v", got)
	}
}

func TestAdminOverrideUnknownStatus(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	_, bookingID := f.createBooking(test)

	root := signToken(test, "root-1", "super_admin", nil)
	recorder := f.do(test, http.MethodPatch, "/api/v1/admin/bookings/"+bookingID+"/status",
		map[string]any{"status": "archived"}, root)
	if recorder.Code != http.StatusUnprocessableEntity {
		test.Fatalf("expected 422 for unknown status, got %d: %s", recorder.Code, recorder.Body.String())
	}
}
