package pricing

import (
	"fmt"
	"strings"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/registry"
)

const (
	MinYears = 1
	MaxYears = 5

	nameSuffix = ".sui"
)

// NormalizeLabel strips the ".sui" suffix, lower-cases, and checks that the
// remaining label is 3-63 characters of [a-z0-9-] without an edge hyphen.
func NormalizeLabel(name string) (string, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	label = strings.TrimSuffix(label, nameSuffix)

	if n := len(label); n < registry.MinLabelLength || n > registry.MaxLabelLength {
		return "", fmt.Errorf("%w: %q must be %d-%d characters", domain.ErrInvalidDomain, name,
			registry.MinLabelLength, registry.MaxLabelLength)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return "", fmt.Errorf("%w: %q starts or ends with a hyphen", domain.ErrInvalidDomain, name)
	}
	for _, r := range label {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", fmt.Errorf("%w: %q has invalid character %q", domain.ErrInvalidDomain, name, r)
		}
	}
	return label, nil
}

// FullName returns the registrable name for a label.
func FullName(label string) string {
	return label + nameSuffix
}

// ValidateYears checks the registration period.
func ValidateYears(years int) error {
	if years < MinYears || years > MaxYears {
		return fmt.Errorf("%w: %d (want %d-%d)", domain.ErrInvalidYears, years, MinYears, MaxYears)
	}
	return nil
}
