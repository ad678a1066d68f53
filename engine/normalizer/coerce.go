package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uadcheck/uadcheck/engine/core"
)

var datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// coerceDate accepts the vendor date spellings (slashes, dashes, dots,
// two-digit years, ISO) and returns the canonical MM/DD/YYYY form.
func coerceDate(value any) (string, bool) {
	text, ok := asText(value)
	if !ok {
		return "", false
	}
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("%s/%s/%s", m[2], m[3], m[1]), true
	}
	s := strings.NewReplacer("-", "/", ".", "/").Replace(text)
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	mm, _ := strconv.Atoi(m[1])
	dd, _ := strconv.Atoi(m[2])
	yy, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		yy += 2000
	}
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return "", false
	}
	return fmt.Sprintf("%02d/%02d/%04d", mm, dd, yy), true
}

// coerceMoney strips currency punctuation and rounds to whole dollars.
func coerceMoney(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(decimal.NewFromFloat(v).Round(0).IntPart()), true
	case map[string]any:
		// Currency objects from the extractor: {"amount": ..., "currency_code": ...}
		if amount, ok := v["amount"]; ok {
			return coerceMoney(amount)
		}
		return 0, false
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.NewReplacer("$", "", ",", "", " ", "").Replace(cleaned)
		if cleaned == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			digits := keepDigits(cleaned)
			if digits == "" {
				return 0, false
			}
			d, err = decimal.NewFromString(digits)
			if err != nil {
				return 0, false
			}
		}
		return int(d.Round(0).IntPart()), true
	default:
		return 0, false
	}
}

// coerceBool maps textual affirmatives and negatives; the "(none selected)"
// sentinel coerces to nothing at all.
func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y", "true", "checked":
			return true, true
		case "no", "n", "false", "unchecked":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// coerceEnum canonicalizes vendor vocabulary case- and spacing-insensitively.
// Unmapped values are returned as-is with ok=false so callers can record a
// normalization miss without dropping the value.
func coerceEnum(value any, aliases map[string]string) (string, bool) {
	text, ok := asText(value)
	if !ok {
		return "", false
	}
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if canonical, found := aliases[key]; found {
		return canonical, true
	}
	return text, false
}

// coerceHOAFreq maps payment-interval labels onto None / PerMonth / PerYear.
func coerceHOAFreq(value any) (string, bool) {
	text, ok := asText(value)
	if !ok {
		return "None", true
	}
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "month"):
		return "PerMonth", true
	case strings.Contains(t, "year"), strings.Contains(t, "annual"):
		return "PerYear", true
	case strings.Contains(t, "none"):
		return "None", true
	}
	return "None", true
}

// coerceDOM keeps the digits of a days-on-market value, preserving the
// vendor's "Unk" marker.
func coerceDOM(value any) (string, bool) {
	switch v := value.(type) {
	case int:
		return fmt.Sprintf("%d", v), true
	case float64:
		return fmt.Sprintf("%d", int(v)), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", false
		}
		if strings.HasPrefix(strings.ToLower(s), "unk") {
			return "Unk", true
		}
		digits := keepDigits(s)
		if digits == "" {
			return "", false
		}
		return digits, true
	default:
		return "", false
	}
}

// coerceAddress splits a vendor address object (or pre-split map) into the
// canonical street/city/state/zip leaves, dropping empty components.
func coerceAddress(value any) (map[string]any, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	pick := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if raw, found := obj[key]; found {
				if text, isText := asText(raw); isText {
					return text, true
				}
			}
		}
		return "", false
	}
	out := map[string]any{}
	if v, found := pick("street", "streetAddress", "street_address"); found {
		out["street"] = v
	}
	if v, found := pick("city"); found {
		out["city"] = v
	}
	if v, found := pick("state"); found {
		out["state"] = v
	}
	if v, found := pick("zip", "postalCode", "postal_code"); found {
		out["zip"] = v
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// asText extracts a trimmed non-empty string, rejecting the sentinel.
func asText(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, core.NoneSelected) {
		return "", false
	}
	return trimmed, true
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
