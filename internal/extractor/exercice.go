package extractor

import (
	"strconv"

	"fiscora/internal/domain"
)

// Fiscal years outside this window are treated as noise, not exercices.
const (
	exerciceMin = 2015
	exerciceMax = 2030
)

type exerciceExtractor struct{}

// NewExerciceExtractor extracts the fiscal year ("Exercice: 2024", "GB/2024").
func NewExerciceExtractor() FieldExtractor {
	return &exerciceExtractor{}
}

func (e *exerciceExtractor) FieldType() domain.FieldType { return domain.FieldExercice }

func (e *exerciceExtractor) Extract(stream *domain.TokenStream, zones []domain.Zone) []domain.ExtractedField {
	text := cleanOCRText(stream.FullText())
	if text == "" {
		return nil
	}

	var cands []candidate
	for _, p := range exercicePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[0]:m[1]]
			year := text[m[2]:m[3]]
			if !ValidExercice(year) {
				continue
			}
			conf, bbox := locate(stream, raw, year)
			cands = append(cands, candidate{
				field: domain.ExtractedField{
					Type:       domain.FieldExercice,
					Value:      year,
					Raw:        raw,
					Confidence: conf,
					BBox:       bbox,
					Pattern:    p.name,
				},
				score: scoreCandidate(conf, p.weight, bbox, stream, zones),
				pos:   m[0],
			})
		}
	}

	best := selectBest(cands, stream, zones)
	if best == nil {
		return nil
	}
	return []domain.ExtractedField{*best}
}

// ValidExercice reports whether s is a 4-digit year in the accepted window.
func ValidExercice(s string) bool {
	if len(s) != 4 {
		return false
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return year >= exerciceMin && year <= exerciceMax
}
