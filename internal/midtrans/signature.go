package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/kashiralabs/fieldbook/pkg/booking"
)

// signatureFor computes the gateway's notification signature:
// hex(sha512(order_id + status_code + gross_amount + server_key)).
func signatureFor(orderID string, statusCode string, grossAmount string, serverKey string) string {
	digest := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(digest[:])
}

// VerifyNotification recomputes the notification signature and compares it in
// constant time against the supplied one.
func (client *Client) VerifyNotification(notification booking.Notification) error {
	if notification.OrderID == "" || notification.SignatureKey == "" {
		return fmt.Errorf("%w: missing order_id or signature_key", booking.ErrInvalidNotification)
	}
	expected := signatureFor(notification.OrderID, notification.StatusCode, notification.GrossAmount, client.serverKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(notification.SignatureKey)) != 1 {
		return booking.ErrInvalidSignature
	}
	return nil
}
