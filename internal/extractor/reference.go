package extractor

import (
	"fiscora/internal/domain"
)

// referenceExtractor handles the singular prefixed-number fields: mandat and
// bordereau share one grammar and one selection discipline.
type referenceExtractor struct {
	fieldType domain.FieldType
	patterns  []pattern
	format    func(number string) string
}

// NewMandatExtractor extracts the payment-mandate reference (MD/XXXXXXX).
func NewMandatExtractor() FieldExtractor {
	return &referenceExtractor{
		fieldType: domain.FieldMandat,
		patterns:  mandatPatterns,
		format:    domain.FormatMandat,
	}
}

// NewBordereauExtractor extracts the bordereau reference (BOR/XXXXXXX).
func NewBordereauExtractor() FieldExtractor {
	return &referenceExtractor{
		fieldType: domain.FieldBordereau,
		patterns:  bordereauPatterns,
		format:    domain.FormatBordereau,
	}
}

func (e *referenceExtractor) FieldType() domain.FieldType { return e.fieldType }

func (e *referenceExtractor) Extract(stream *domain.TokenStream, zones []domain.Zone) []domain.ExtractedField {
	text := cleanOCRText(stream.FullText())
	if text == "" {
		return nil
	}

	var cands []candidate
	for _, p := range e.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[0]:m[1]]
			number := text[m[2]:m[3]]
			if !domain.ValidReferenceNumber(number) {
				continue
			}
			conf, bbox := locate(stream, raw, number)
			cands = append(cands, candidate{
				field: domain.ExtractedField{
					Type:       e.fieldType,
					Value:      e.format(number),
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
