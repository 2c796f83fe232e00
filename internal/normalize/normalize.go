package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IDWidth is the canonical width of a group id.
const IDWidth = 6

// ParseError reports a field value that could not be normalized.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q", e.Reason, e.Value)
}

// Name trims, collapses whitespace runs, and uppercases free-text names.
func Name(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Branch normalizes like Name and strips diacritics so accented and
// unaccented spellings of the same branch compare equal.
func Branch(s string) string {
	n := Name(s)
	out, _, err := transform.String(stripAccents, n)
	if err != nil {
		return n
	}
	return out
}

// Fold lowercases and strips diacritics for tolerant text matching.
func Fold(s string) string {
	l := strings.ToLower(s)
	out, _, err := transform.String(stripAccents, l)
	if err != nil {
		return l
	}
	return out
}

var (
	groupedAmount = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	plainAmount   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// Amount parses a monetary value, tolerating a currency symbol, thousands
// separators, and internal spaces. Negative and malformed values are
// rejected with a ParseError.
func Amount(s string) (decimal.Decimal, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	v = strings.TrimPrefix(v, "$")
	switch {
	case v == "":
		return decimal.Zero, &ParseError{Value: s, Reason: "empty amount"}
	case strings.HasPrefix(v, "-"):
		return decimal.Zero, &ParseError{Value: s, Reason: "negative amount"}
	}
	if strings.Contains(v, ",") {
		if !groupedAmount.MatchString(v) {
			return decimal.Zero, &ParseError{Value: s, Reason: "malformed amount"}
		}
		v = strings.ReplaceAll(v, ",", "")
	} else if !plainAmount.MatchString(v) {
		return decimal.Zero, &ParseError{Value: s, Reason: "malformed amount"}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, &ParseError{Value: s, Reason: "malformed amount"}
	}
	return d, nil
}

// PadID validates a group id and left-pads it with zeros to IDWidth.
func PadID(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", &ParseError{Value: s, Reason: "empty id"}
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return "", &ParseError{Value: s, Reason: "id must be digits"}
		}
	}
	for len(v) < IDWidth {
		v = "0" + v
	}
	return v, nil
}
