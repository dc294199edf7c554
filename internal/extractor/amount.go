package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"fiscora/internal/domain"
)

type amountExtractor struct{}

// NewAmountExtractor extracts every monetary amount found, normalizing
// thousands separators and decimal marks. The currency token is preserved as
// extracted, never inferred.
func NewAmountExtractor() FieldExtractor {
	return &amountExtractor{}
}

func (e *amountExtractor) FieldType() domain.FieldType { return domain.FieldAmount }

func (e *amountExtractor) Extract(stream *domain.TokenStream, zones []domain.Zone) []domain.ExtractedField {
	text := cleanOCRText(stream.FullText())
	if text == "" {
		return nil
	}

	var out []domain.ExtractedField
	seen := make(map[string]bool)
	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[0]:m[1]]
			numText := text[m[2]:m[3]]
			currency := ""
			if len(m) >= 6 && m[4] >= 0 {
				currency = normalizeCurrency(text[m[4]:m[5]])
			}
			value, ok := NormalizeAmount(numText)
			if !ok {
				continue
			}
			key := value + "|" + currency
			if seen[key] {
				continue
			}
			seen[key] = true
			conf, bbox := locate(stream, raw, numText)
			out = append(out, domain.ExtractedField{
				Type:       domain.FieldAmount,
				Value:      value,
				Raw:        raw,
				Confidence: conf * p.weight,
				BBox:       bbox,
				Pattern:    p.name,
				Currency:   currency,
			})
		}
	}
	return out
}

var currencyAliases = regexp.MustCompile(`(?i)^f\s*cfa$|^francs?\s*cfa$|^fcfa$`)

func normalizeCurrency(s string) string {
	s = strings.TrimSpace(s)
	if currencyAliases.MatchString(s) {
		return "FCFA"
	}
	if s == "€" {
		return "EUR"
	}
	return strings.ToUpper(s)
}

// NormalizeAmount parses a separator-formatted number into a canonical
// decimal string. Grouping convention is detected per match: a trailing
// [.,] followed by exactly two digits is the decimal mark, every other
// space, dot or comma is grouping. Ex: "5 672 860" -> "5672860",
// "1.234,56" -> "1234.56".
func NormalizeAmount(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	if s == "" {
		return "", false
	}

	decimal := ""
	if len(s) > 3 {
		sep := s[len(s)-3]
		if sep == '.' || sep == ',' {
			tail := s[len(s)-2:]
			if isDigits(tail) {
				decimal = tail
				s = s[:len(s)-3]
			}
		}
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '.' || r == ',':
			// grouping separator
		default:
			return "", false
		}
	}
	if digits.Len() == 0 {
		return "", false
	}

	value := digits.String()
	if decimal != "" {
		value = value + "." + decimal
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return "", false
	}
	return value, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
