package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BoundingBox is a rectangle in pixel space.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Zone is a named fractional region of the page, coordinates in [0,1].
// Zones act as spatial priors for field extraction, not hard filters.
type Zone struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the center of bbox falls inside the zone,
// given the page dimensions in pixels. Unknown dimensions match nothing.
func (z Zone) Contains(bbox BoundingBox, pageW, pageH int) bool {
	if pageW <= 0 || pageH <= 0 {
		return false
	}
	cx := (float64(bbox.X) + float64(bbox.Width)/2) / float64(pageW)
	cy := (float64(bbox.Y) + float64(bbox.Height)/2) / float64(pageH)
	return cx >= z.X && cx <= z.X+z.Width && cy >= z.Y && cy <= z.Y+z.Height
}

// Token is a single recognized text unit from an OCR engine.
type Token struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// TokenStream is the full output of one engine run over one page image.
type TokenStream struct {
	Tokens     []Token `json:"tokens"`
	PageWidth  int     `json:"page_width"`
	PageHeight int     `json:"page_height"`
	Language   string  `json:"language,omitempty"`
}

// FullText joins the token texts in reading order.
func (ts TokenStream) FullText() string {
	parts := make([]string, 0, len(ts.Tokens))
	for _, t := range ts.Tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

// MeanConfidence returns the mean token confidence, 0 for an empty stream.
func (ts TokenStream) MeanConfidence() float64 {
	if len(ts.Tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range ts.Tokens {
		sum += t.Confidence
	}
	return sum / float64(len(ts.Tokens))
}

// OCROptions tunes engine invocation.
type OCROptions struct {
	Languages           []string `json:"languages"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	DetectOrientation   bool     `json:"detect_orientation"`
	UseGPU              bool     `json:"use_gpu"`
	TimeoutSecs         int      `json:"timeout_secs"`
}

// PreprocessOptions toggles individual image transforms.
type PreprocessOptions struct {
	Deskew        bool    `json:"deskew"`
	Denoise       bool    `json:"denoise"`
	Contrast      bool    `json:"contrast"`
	Binarize      bool    `json:"binarize"`
	RemoveBorders bool    `json:"remove_borders"`
	Upscale       bool    `json:"upscale"`
	UpscaleFactor float64 `json:"upscale_factor"`
}

// Enabled reports whether the given step is switched on.
func (p PreprocessOptions) Enabled(step PreprocessStep) bool {
	switch step {
	case StepDeskew:
		return p.Deskew
	case StepDenoise:
		return p.Denoise
	case StepContrast:
		return p.Contrast
	case StepBinarize:
		return p.Binarize
	case StepBorderRemoval:
		return p.RemoveBorders
	case StepUpscale:
		return p.Upscale
	}
	return false
}

// ExtractToggles selects which fields the pipeline extracts.
type ExtractToggles struct {
	Mandat     bool `json:"mandat"`
	Bordereau  bool `json:"bordereau"`
	Exercice   bool `json:"exercice"`
	Dates      bool `json:"dates"`
	Amounts    bool `json:"amounts"`
	Signatures bool `json:"signatures"`
	Tables     bool `json:"tables"`
	AllText    bool `json:"all_text"`
}

// RequiredFields lists the singular field types the caller asked for.
// Dates and amounts are unbounded collections and never "required" in the
// confidence-gating sense.
func (e ExtractToggles) RequiredFields() []FieldType {
	var out []FieldType
	if e.Mandat {
		out = append(out, FieldMandat)
	}
	if e.Bordereau {
		out = append(out, FieldBordereau)
	}
	if e.Exercice {
		out = append(out, FieldExercice)
	}
	return out
}

// ValidationOptions toggles validation stages.
type ValidationOptions struct {
	ValidateFormat        bool `json:"validate_format"`
	ValidateBusinessRules bool `json:"validate_business_rules"`
	StrictMode            bool `json:"strict_mode"`
}

// OutputOptions shapes the returned result; none of these affect extraction.
type OutputOptions struct {
	IncludeRawText bool `json:"include_raw_text"`
	IncludeTokens  bool `json:"include_tokens"`
}

// CacheOptions controls result caching per request.
type CacheOptions struct {
	UseCache   bool `json:"use_cache"`
	TTLSeconds int  `json:"ttl_seconds"`
}

// ExtractionConfig is the immutable description of one extraction request.
type ExtractionConfig struct {
	Engine          string            `json:"engine"`
	EnginesFallback []string          `json:"engines_fallback"`
	Extract         ExtractToggles    `json:"extract"`
	Preprocess      PreprocessOptions `json:"preprocess"`
	OCR             OCROptions        `json:"ocr"`
	Zones           []Zone            `json:"zones,omitempty"`
	Validation      ValidationOptions `json:"validation"`
	Output          OutputOptions     `json:"output"`
	Cache           CacheOptions      `json:"cache"`
}

// Fingerprint derives the deterministic cache key for this config applied to
// a document with the given content hash. Only result-affecting parts
// participate: engine chain, preprocessing, OCR options, extraction toggles
// and zones. Output and cache options are deliberately excluded.
func (c ExtractionConfig) Fingerprint(contentHash string) string {
	var b strings.Builder
	b.WriteString(contentHash)
	b.WriteString("|e=")
	b.WriteString(c.Engine)
	b.WriteString("|f=")
	b.WriteString(strings.Join(c.EnginesFallback, ","))
	fmt.Fprintf(&b, "|p=%t%t%t%t%t%t:%.2f",
		c.Preprocess.Deskew, c.Preprocess.Denoise, c.Preprocess.Contrast,
		c.Preprocess.Binarize, c.Preprocess.RemoveBorders, c.Preprocess.Upscale,
		c.Preprocess.UpscaleFactor)
	langs := append([]string(nil), c.OCR.Languages...)
	sort.Strings(langs)
	fmt.Fprintf(&b, "|o=%s:%.3f:%t:%t",
		strings.Join(langs, ","), c.OCR.ConfidenceThreshold,
		c.OCR.DetectOrientation, c.OCR.UseGPU)
	fmt.Fprintf(&b, "|x=%t%t%t%t%t%t%t%t",
		c.Extract.Mandat, c.Extract.Bordereau, c.Extract.Exercice,
		c.Extract.Dates, c.Extract.Amounts, c.Extract.Signatures,
		c.Extract.Tables, c.Extract.AllText)
	for _, z := range c.Zones {
		fmt.Fprintf(&b, "|z=%s:%.4f:%.4f:%.4f:%.4f", z.Name, z.X, z.Y, z.Width, z.Height)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ExtractedField is one recognized entity.
type ExtractedField struct {
	Type       FieldType    `json:"type"`
	Value      string       `json:"value"`
	Raw        string       `json:"raw"`
	Confidence float64      `json:"confidence"`
	BBox       *BoundingBox `json:"bbox,omitempty"`
	Engine     string       `json:"engine"`
	Pattern    string       `json:"pattern,omitempty"`
	Currency   string       `json:"currency,omitempty"`
}

// EngineTrace records which engines participated in an extraction.
type EngineTrace struct {
	Primary       string   `json:"primary"`
	FallbacksUsed []string `json:"fallbacks_used"`
}

// ExtractionMetadata describes how the result was produced.
type ExtractionMetadata struct {
	PreprocessApplied []string `json:"preprocessing_applied"`
	ZonesProcessed    []string `json:"zones_processed,omitempty"`
	DetectedLanguage  string   `json:"detected_language,omitempty"`
}

// ExtractedData groups the per-field-type extraction output.
type ExtractedData struct {
	Mandat    *ExtractedField  `json:"mandat,omitempty"`
	Bordereau *ExtractedField  `json:"bordereau,omitempty"`
	Exercice  *ExtractedField  `json:"exercice,omitempty"`
	Dates     []ExtractedField `json:"dates,omitempty"`
	Amounts   []ExtractedField `json:"amounts,omitempty"`
}

// Field returns the singular field of the given type, if present.
func (d ExtractedData) Field(t FieldType) *ExtractedField {
	switch t {
	case FieldMandat:
		return d.Mandat
	case FieldBordereau:
		return d.Bordereau
	case FieldExercice:
		return d.Exercice
	}
	return nil
}

// ExtractionResult is the immutable aggregate produced by one extraction.
type ExtractionResult struct {
	ID            uuid.UUID          `json:"id"`
	DocumentRef   string             `json:"document_ref"`
	Engine        EngineTrace        `json:"engine"`
	ExtractedData ExtractedData      `json:"extracted_data"`
	RawText       string             `json:"raw_text,omitempty"`
	ProcessingMS  int64              `json:"processing_ms"`
	Timestamp     time.Time          `json:"timestamp"`
	Metadata      ExtractionMetadata `json:"metadata"`
}

// ValidationIssue is one finding from the validation engine.
type ValidationIssue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Rule     string   `json:"rule"`
}

// ValidationReport is the 1:1 companion of an ExtractionResult.
type ValidationReport struct {
	IsValid         bool              `json:"is_valid"`
	ConfidenceScore float64           `json:"confidence_score"`
	Issues          []ValidationIssue `json:"issues"`
	HierarchyValid  bool              `json:"hierarchy_valid"`
}

// CachedExtraction is the value stored under one fingerprint.
type CachedExtraction struct {
	Result ExtractionResult `json:"result"`
	Report ValidationReport `json:"report"`
}

// ErrorDescriptor is the structured, user-visible form of a pipeline failure.
type ErrorDescriptor struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Engine  string `json:"engine,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// DocumentOutcome tracks one document's progress inside a batch.
type DocumentOutcome struct {
	Ref     string            `json:"ref"`
	Status  OutcomeStatus     `json:"status"`
	Result  *ExtractionResult `json:"result,omitempty"`
	Report  *ValidationReport `json:"report,omitempty"`
	Error   *ErrorDescriptor  `json:"error,omitempty"`
	Retries int               `json:"retries"`
}

// BatchJob aggregates many documents driven through the pipeline together.
// Documents preserves submission order; outcomes are filled in as they land.
type BatchJob struct {
	ID          uuid.UUID         `json:"id"`
	Status      BatchStatus       `json:"status"`
	Documents   []DocumentOutcome `json:"documents"`
	Config      ExtractionConfig  `json:"config"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Counts returns (processed, failed, cancelled) document totals.
func (b *BatchJob) Counts() (processed, failed, cancelled int) {
	for _, d := range b.Documents {
		switch d.Status {
		case OutcomeSuccess:
			processed++
		case OutcomeFailed:
			failed++
		case OutcomeCancelled:
			cancelled++
		}
	}
	return
}

// Progress is the fraction of documents that have reached an outcome.
func (b *BatchJob) Progress() float64 {
	if len(b.Documents) == 0 {
		return 0
	}
	done := 0
	for _, d := range b.Documents {
		if d.Status.Final() {
			done++
		}
	}
	return float64(done) / float64(len(b.Documents))
}
