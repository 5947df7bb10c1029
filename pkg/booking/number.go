package booking

import (
	"context"
	"crypto/rand"
	"fmt"
)

// generateBookingNumber draws a prefixed random number and retries on the
// unlikely collision with an existing booking.
func generateBookingNumber(ctx context.Context, store Store) (string, error) {
	for attempt := 0; attempt < bookingNumberAttempts; attempt++ {
		candidate, err := randomBookingNumber()
		if err != nil {
			return "", err
		}
		exists, err := store.BookingNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrBookingNumberExhausted
}

func randomBookingNumber() (string, error) {
	raw := make([]byte, bookingNumberSuffix)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("booking number entropy: %w", err)
	}
	suffix := make([]byte, bookingNumberSuffix)
	for index, value := range raw {
		suffix[index] = bookingNumberAlphabet[int(value)%len(bookingNumberAlphabet)]
	}
	return bookingNumberPrefix + string(suffix), nil
}
