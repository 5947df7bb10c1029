package booking

// Quote computes the price breakdown for a slot's base price. Subtotal always
// equals the base price and total always equals subtotal plus the fixed admin
// fee; every call site that needs a price goes through here.
func Quote(basePrice Amount) Pricing {
	return Pricing{
		Subtotal: basePrice,
		AdminFee: AdminFee,
		Total:    basePrice + AdminFee,
	}
}
