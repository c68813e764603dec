package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var quantityPrinter = message.NewPrinter(language.German)

// MaxQuantity caps a single order. The core API enforces its own limit; this
// bound just keeps obviously broken input out of the preview call.
const MaxQuantity = 1_000_000_000

// FormatQuantity renders an API-call quantity with thousands separators in
// the portal's display locale, e.g. 1234567 -> "1.234.567".
func FormatQuantity(quantity int64) string {
	return quantityPrinter.Sprintf("%d", quantity)
}

// ParseQuantity parses user input back into a quantity, accepting the
// separators FormatQuantity emits plus plain spaces. Round-trips with
// FormatQuantity for any valid quantity.
func ParseQuantity(input string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', ' ', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if cleaned == "" {
		return 0, fmt.Errorf("quantity is required")
	}

	quantity, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", input)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}
	if quantity > MaxQuantity {
		return 0, fmt.Errorf("quantity exceeds maximum of %s", FormatQuantity(MaxQuantity))
	}
	return quantity, nil
}
