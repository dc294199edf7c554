// Package extractor implements pattern-based field extraction over OCR token
// streams. One extractor exists per semantic field type; singular fields
// (mandat, bordereau, exercice) keep the best-scoring candidate while dates
// and amounts return every match found.
package extractor

import (
	"math"
	"sort"
	"strings"

	"fiscora/internal/domain"
)

// FieldExtractor extracts fields of one type from a token stream. Zones are
// spatial priors: a match outside every declared zone is still accepted but
// its score is penalized.
type FieldExtractor interface {
	FieldType() domain.FieldType
	Extract(stream *domain.TokenStream, zones []domain.Zone) []domain.ExtractedField
}

// outOfZonePenalty scales the combined score of matches that fall outside
// every declared zone. Zones are priors, not filters.
const outOfZonePenalty = 0.75

// fallbackConfidence is assumed when a match cannot be located in any token,
// mirroring the confidence the engines report for clean prints.
const fallbackConfidence = 0.85

// ForConfig builds the extractor set enabled by the request toggles.
func ForConfig(toggles domain.ExtractToggles) []FieldExtractor {
	var out []FieldExtractor
	if toggles.Mandat {
		out = append(out, NewMandatExtractor())
	}
	if toggles.Bordereau {
		out = append(out, NewBordereauExtractor())
	}
	if toggles.Exercice {
		out = append(out, NewExerciceExtractor())
	}
	if toggles.Dates {
		out = append(out, NewDateExtractor())
	}
	if toggles.Amounts {
		out = append(out, NewAmountExtractor())
	}
	return out
}

// candidate is one scored pattern match before selection.
type candidate struct {
	field domain.ExtractedField
	score float64
	pos   int
}

// locate finds the token carrying the matched text and returns its
// confidence and bounding box. OCR engines split on whitespace, so both the
// full raw match and its digit core are probed.
func locate(stream *domain.TokenStream, raw, core string) (float64, *domain.BoundingBox) {
	probes := []string{raw, core}
	for _, probe := range probes {
		if probe == "" {
			continue
		}
		for _, tok := range stream.Tokens {
			if strings.Contains(tok.Text, probe) {
				bbox := tok.BBox
				return tok.Confidence, &bbox
			}
		}
	}
	return fallbackConfidence, nil
}

// scoreCandidate computes combined score = token confidence x pattern weight,
// applying the zone prior when zones are declared.
func scoreCandidate(conf, weight float64, bbox *domain.BoundingBox, stream *domain.TokenStream, zones []domain.Zone) float64 {
	score := conf * weight
	if len(zones) == 0 || bbox == nil {
		return score
	}
	for _, z := range zones {
		if z.Contains(*bbox, stream.PageWidth, stream.PageHeight) {
			return score
		}
	}
	return score * outOfZonePenalty
}

// zoneDistance is the tie-break metric: distance from the match center to the
// nearest declared zone center, in fractional page units.
func zoneDistance(bbox *domain.BoundingBox, stream *domain.TokenStream, zones []domain.Zone) float64 {
	if bbox == nil || len(zones) == 0 || stream.PageWidth <= 0 || stream.PageHeight <= 0 {
		return math.MaxFloat64
	}
	cx := (float64(bbox.X) + float64(bbox.Width)/2) / float64(stream.PageWidth)
	cy := (float64(bbox.Y) + float64(bbox.Height)/2) / float64(stream.PageHeight)
	best := math.MaxFloat64
	for _, z := range zones {
		zx := z.X + z.Width/2
		zy := z.Y + z.Height/2
		d := math.Hypot(cx-zx, cy-zy)
		if d < best {
			best = d
		}
	}
	return best
}

// selectBest orders candidates by score, breaking ties by proximity to the
// expected zone and then by text position, and returns the winner.
func selectBest(cands []candidate, stream *domain.TokenStream, zones []domain.Zone) *domain.ExtractedField {
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		di := zoneDistance(cands[i].field.BBox, stream, zones)
		dj := zoneDistance(cands[j].field.BBox, stream, zones)
		if di != dj {
			return di < dj
		}
		return cands[i].pos < cands[j].pos
	})
	f := cands[0].field
	return &f
}
