package extractor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fiscora/internal/domain"
)

type dateExtractor struct{}

// NewDateExtractor extracts every date found. Documents routinely carry
// several (emission, visa, payment), so no single winner is chosen.
func NewDateExtractor() FieldExtractor {
	return &dateExtractor{}
}

func (e *dateExtractor) FieldType() domain.FieldType { return domain.FieldDate }

func (e *dateExtractor) Extract(stream *domain.TokenStream, zones []domain.Zone) []domain.ExtractedField {
	text := cleanOCRText(stream.FullText())
	if text == "" {
		return nil
	}

	var out []domain.ExtractedField
	seen := make(map[string]bool)
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[0]:m[1]]
			iso, ok := canonicalDate(p.name, text, m)
			if !ok || seen[iso] {
				continue
			}
			seen[iso] = true
			conf, bbox := locate(stream, raw, raw)
			out = append(out, domain.ExtractedField{
				Type:       domain.FieldDate,
				Value:      iso,
				Raw:        raw,
				Confidence: conf * p.weight,
				BBox:       bbox,
				Pattern:    p.name,
			})
		}
	}
	return out
}

// canonicalDate converts a pattern match into an ISO yyyy-mm-dd value,
// rejecting impossible calendar dates.
func canonicalDate(patternName, text string, m []int) (string, bool) {
	group := func(i int) string { return text[m[2*i]:m[2*i+1]] }
	var year, month, day int
	switch patternName {
	case "date_jj_mm_aaaa":
		day, _ = strconv.Atoi(group(1))
		month, _ = strconv.Atoi(group(2))
		year, _ = strconv.Atoi(group(3))
	case "date_iso":
		year, _ = strconv.Atoi(group(1))
		month, _ = strconv.Atoi(group(2))
		day, _ = strconv.Atoi(group(3))
	case "date_texte":
		day, _ = strconv.Atoi(group(1))
		month = frenchMonths[strings.ToLower(group(2))]
		year, _ = strconv.Atoi(group(3))
	default:
		return "", false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}
