package booking

const (
	operationCreate       = "create_booking"
	operationCancel       = "cancel_booking"
	operationOverride     = "override_status"
	operationReconcile    = "reconcile"
	operationSweep        = "sweep"
	operationAvailability = "availability"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// DefaultPaymentMethod tags payments initiated through the gateway widget.
	DefaultPaymentMethod = "transfer_bank"

	// AdminFee is the fixed surcharge added to every booking's subtotal.
	AdminFee Amount = 5000

	bookingNumberPrefix   = "KSHIR"
	bookingNumberSuffix   = 8
	bookingNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bookingNumberAttempts = 5

	adminNoteAuthorPrefix = "admin:"
)
