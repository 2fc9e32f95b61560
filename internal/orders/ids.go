package orders

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

const OrderIDPrefix = "ORD-"

var orderIDPattern = regexp.MustCompile(`^ORD-\d{5}$`)

// NormalizeID is the canonical form used for every product and order id
// comparison: surrounding whitespace trimmed, then case folded.
func NormalizeID(id string) string {
	// cases.Caser is stateful, build one per call.
	return cases.Fold().String(strings.TrimSpace(id))
}

func SameID(a, b string) bool {
	na := NormalizeID(a)
	return na != "" && na == NormalizeID(b)
}

func NewOrderID() string {
	return fmt.Sprintf("%s%05d", OrderIDPrefix, rand.IntN(100000))
}

func ValidOrderID(id string) bool {
	return orderIDPattern.MatchString(id)
}
