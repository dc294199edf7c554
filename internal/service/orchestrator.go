// Package service wires the extraction pipeline together: orchestration over
// engines, the cached extraction front door and the batch coordinator.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fiscora/internal/domain"
	"fiscora/internal/engine"
	"fiscora/internal/extractor"
	"fiscora/internal/port"
	"fiscora/internal/preprocess"
)

// Orchestrator drives one document through preprocessing, the engine fallback
// chain and field extraction. It is stateless and safe for concurrent use.
type Orchestrator struct {
	registry *engine.Registry
	selector port.EngineSelector
	pipeline *preprocess.Pipeline
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
func NewOrchestrator(registry *engine.Registry, selector port.EngineSelector, pipeline *preprocess.Pipeline) *Orchestrator {
	return &Orchestrator{registry: registry, selector: selector, pipeline: pipeline}
}

// attempt is one completed engine run with its extraction output.
type attempt struct {
	engine string
	stream *domain.TokenStream
	data   domain.ExtractedData
	score  float64
}

// Extract runs the full pipeline for one document. An engine whose output
// does not clear the confidence threshold on the required fields triggers a
// fallback to the next engine; if every engine falls short the best attempt
// is still returned rather than discarded.
func (o *Orchestrator) Extract(ctx context.Context, doc port.Document, cfg domain.ExtractionConfig) (*domain.ExtractionResult, error) {
	start := time.Now()

	image, applied := o.pipeline.Run(ctx, doc.Bytes, cfg.Preprocess)
	extractors := extractor.ForConfig(cfg.Extract)
	chain := o.engineChain(doc, cfg)

	var (
		best     *attempt
		invoked  []string
		lastErr  error
		required = cfg.Extract.RequiredFields()
	)
	for _, name := range chain {
		eng, ok := o.registry.Get(name)
		if !ok {
			log.Printf("service.Orchestrator: engine %s not registered, skipping", name)
			lastErr = fmt.Errorf("%w: %s", domain.ErrUnknownEngine, name)
			continue
		}
		if !eng.IsAvailable() {
			log.Printf("service.Orchestrator: engine %s unavailable, skipping", name)
			continue
		}

		invoked = append(invoked, name)
		stream, err := eng.Run(ctx, image, cfg.OCR)
		if err != nil {
			log.Printf("service.Orchestrator: engine %s failed for %s: %v", name, doc.Ref, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		att := &attempt{engine: name, stream: stream}
		for _, ex := range extractors {
			o.assign(&att.data, ex.FieldType(), ex.Extract(stream, cfg.Zones))
		}
		att.score = requiredConfidence(att.data, required)

		if best == nil || att.score > best.score {
			best = att
		}
		if att.score >= cfg.OCR.ConfidenceThreshold {
			best = att
			break
		}
		log.Printf("service.Orchestrator: engine %s below threshold for %s (%.2f < %.2f), trying next",
			name, doc.Ref, att.score, cfg.OCR.ConfidenceThreshold)
	}

	if best == nil {
		if len(invoked) == 0 {
			return nil, domain.ErrNoEngineAvailable
		}
		if lastErr != nil {
			return nil, fmt.Errorf("%w: last engine error: %v", domain.ErrExtractionFailed, lastErr)
		}
		return nil, domain.ErrExtractionFailed
	}

	stampEngine(&best.data, best.engine)
	result := &domain.ExtractionResult{
		ID:          uuid.New(),
		DocumentRef: doc.Ref,
		Engine: domain.EngineTrace{
			Primary:       best.engine,
			FallbacksUsed: invoked,
		},
		ExtractedData: best.data,
		ProcessingMS:  time.Since(start).Milliseconds(),
		Timestamp:     time.Now().UTC(),
		Metadata: domain.ExtractionMetadata{
			PreprocessApplied: applied,
			ZonesProcessed:    zoneNames(cfg.Zones),
			DetectedLanguage:  best.stream.Language,
		},
	}
	if cfg.Output.IncludeRawText {
		result.RawText = best.stream.FullText()
	}
	return result, nil
}

// engineChain resolves the ordered engine names to try, deduplicated.
func (o *Orchestrator) engineChain(doc port.Document, cfg domain.ExtractionConfig) []string {
	var names []string
	if cfg.Engine == domain.EngineAuto || cfg.Engine == "" {
		names = o.selector.Choose(port.DocumentFeatures{
			SizeBytes:   len(doc.Bytes),
			ContentType: doc.ContentType,
		})
	} else {
		names = append(names, cfg.Engine)
	}
	names = append(names, cfg.EnginesFallback...)

	seen := make(map[string]bool, len(names))
	chain := names[:0]
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		chain = append(chain, n)
	}
	return chain
}

// assign routes one extractor's output into the data aggregate.
func (o *Orchestrator) assign(data *domain.ExtractedData, t domain.FieldType, fields []domain.ExtractedField) {
	if len(fields) == 0 {
		return
	}
	switch t {
	case domain.FieldMandat:
		data.Mandat = &fields[0]
	case domain.FieldBordereau:
		data.Bordereau = &fields[0]
	case domain.FieldExercice:
		data.Exercice = &fields[0]
	case domain.FieldDate:
		data.Dates = fields
	case domain.FieldAmount:
		data.Amounts = fields
	}
}

// requiredConfidence is the mean confidence over the requested singular
// fields, counting an absent field as zero. With nothing required any
// successful engine run suffices.
func requiredConfidence(data domain.ExtractedData, required []domain.FieldType) float64 {
	if len(required) == 0 {
		return 1.0
	}
	var sum float64
	for _, t := range required {
		if f := data.Field(t); f != nil {
			sum += f.Confidence
		}
	}
	return sum / float64(len(required))
}

func stampEngine(data *domain.ExtractedData, name string) {
	for _, f := range []*domain.ExtractedField{data.Mandat, data.Bordereau, data.Exercice} {
		if f != nil {
			f.Engine = name
		}
	}
	for i := range data.Dates {
		data.Dates[i].Engine = name
	}
	for i := range data.Amounts {
		data.Amounts[i].Engine = name
	}
}

func zoneNames(zones []domain.Zone) []string {
	if len(zones) == 0 {
		return nil
	}
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		out = append(out, z.Name)
	}
	return out
}
