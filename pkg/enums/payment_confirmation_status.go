package enums

import "fmt"

// PaymentConfirmationStatus tracks manual review of bank transfer proofs.
type PaymentConfirmationStatus string

const (
	PaymentConfirmationStatusNA            PaymentConfirmationStatus = "na"
	PaymentConfirmationStatusPendingReview PaymentConfirmationStatus = "pending_review"
	PaymentConfirmationStatusConfirmed     PaymentConfirmationStatus = "confirmed"
	PaymentConfirmationStatusRejected      PaymentConfirmationStatus = "rejected"
)

var validPaymentConfirmationStatuses = []PaymentConfirmationStatus{
	PaymentConfirmationStatusNA,
	PaymentConfirmationStatusPendingReview,
	PaymentConfirmationStatusConfirmed,
	PaymentConfirmationStatusRejected,
}

// String implements fmt.Stringer.
func (p PaymentConfirmationStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentConfirmationStatus.
func (p PaymentConfirmationStatus) IsValid() bool {
	for _, candidate := range validPaymentConfirmationStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentConfirmationStatus converts raw input into a PaymentConfirmationStatus.
func ParsePaymentConfirmationStatus(value string) (PaymentConfirmationStatus, error) {
	for _, candidate := range validPaymentConfirmationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment confirmation status %q", value)
}
