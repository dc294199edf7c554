package domain

// FieldType identifies a semantic field recognized in a fiscal document.
type FieldType string

const (
	FieldMandat    FieldType = "mandat"
	FieldBordereau FieldType = "bordereau"
	FieldExercice  FieldType = "exercice"
	FieldDate      FieldType = "date"
	FieldAmount    FieldType = "amount"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// BatchStatus is the lifecycle state of a batch job.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
	BatchCancelled BatchStatus = "cancelled"
)

// Terminal reports whether no further batch state transitions are possible.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCancelled
}

// OutcomeStatus is the per-document state inside a batch.
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "pending"
	OutcomeRunning   OutcomeStatus = "running"
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Final reports whether the document has reached an outcome.
func (s OutcomeStatus) Final() bool {
	return s == OutcomeSuccess || s == OutcomeFailed || s == OutcomeCancelled
}

// PreprocessStep names a single image transform.
type PreprocessStep string

const (
	StepDeskew        PreprocessStep = "deskew"
	StepDenoise       PreprocessStep = "denoise"
	StepContrast      PreprocessStep = "contrast"
	StepBinarize      PreprocessStep = "binarize"
	StepBorderRemoval PreprocessStep = "border_removal"
	StepUpscale       PreprocessStep = "upscale"
)

// CanonicalPreprocessOrder is the fixed order in which enabled steps run.
var CanonicalPreprocessOrder = []PreprocessStep{
	StepDeskew,
	StepDenoise,
	StepContrast,
	StepBinarize,
	StepBorderRemoval,
	StepUpscale,
}

// EngineAuto requests engine ordering from the configured selection strategy.
const EngineAuto = "auto"
