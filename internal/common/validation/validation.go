package validation

import (
	"fmt"
	"math"
)

const (
	// MaxDepositAmount caps a single deposit in USD.
	MaxDepositAmount = 10000.0

	// MaxPurchaseQuantity caps units per purchase request.
	MaxPurchaseQuantity = 100
)

// ValidateAmount checks a monetary amount in USD: positive, bounded and with
// at most two decimal places.
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if amount > MaxDepositAmount {
		return fmt.Errorf("amount cannot exceed %.2f", MaxDepositAmount)
	}
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-9 {
		return fmt.Errorf("amount cannot have more than two decimal places")
	}
	return nil
}

// ValidateQuantity checks a purchase quantity.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if quantity > MaxPurchaseQuantity {
		return fmt.Errorf("quantity cannot exceed %d", MaxPurchaseQuantity)
	}
	return nil
}

// ValidateGBAmount checks that the requested quota is one of the product's
// allowed options.
func ValidateGBAmount(gbAmount int64, options []int64) error {
	if gbAmount <= 0 {
		return fmt.Errorf("gb amount must be positive")
	}
	for _, opt := range options {
		if opt == gbAmount {
			return nil
		}
	}
	return fmt.Errorf("gb amount %d is not offered for this product", gbAmount)
}
