package enums

import "fmt"

// BillingFrequency is the recurrence of a deal-product row. The zero value
// means the proposal did not state one.
type BillingFrequency string

const (
	BillingOneTime   BillingFrequency = "one-time"
	BillingMonthly   BillingFrequency = "monthly"
	BillingQuarterly BillingFrequency = "quarterly"
	BillingAnnually  BillingFrequency = "annually"
)

var validBillingFrequencies = []BillingFrequency{
	BillingOneTime,
	BillingMonthly,
	BillingQuarterly,
	BillingAnnually,
}

// String implements fmt.Stringer.
func (b BillingFrequency) String() string {
	return string(b)
}

// IsValid reports whether the billing frequency is recognized.
func (b BillingFrequency) IsValid() bool {
	for _, candidate := range validBillingFrequencies {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingFrequency converts a raw string into a BillingFrequency.
func ParseBillingFrequency(value string) (BillingFrequency, error) {
	for _, candidate := range validBillingFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing frequency %q", value)
}
