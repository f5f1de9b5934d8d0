package engine

import (
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/output"
	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/selection"
)

// Stage names the step at which a run failed.
type Stage string

const (
	StageConfiguration Stage = "Configuration"
	StageClassify      Stage = "Classify"
	StageVerify        Stage = "Verify"
	StageExecute       Stage = "Execute"
	StageEmptyResult   Stage = "EmptyResult"
	StagePlan          Stage = "Plan"
	StageCancelled     Stage = "Cancelled"
	StageExport        Stage = "Export"
)

// MessageComplete is the message of a successful run.
const MessageComplete = "process complete"

// RowCounts holds the rows of each temporary object.
type RowCounts struct {
	Point int64 `json:"point"`
	Poly  int64 `json:"poly"`
	Flat  int64 `json:"flat"`
}

// ArtifactOutcome is one written output.
type ArtifactOutcome struct {
	Part output.Part `json:"part"`
	Path string      `json:"path"`
	Rows int64       `json:"rows"`
}

// RunOutcome is the single result of Engine.Run.
type RunOutcome struct {
	RunID        string            `json:"run_id"`
	Spatial      bool              `json:"spatial"`
	Format       output.Format     `json:"format,omitempty"`
	RowCounts    RowCounts         `json:"row_counts"`
	Succeeded    bool              `json:"succeeded"`
	FailureStage Stage             `json:"failure_stage,omitempty"`
	Artifacts    []ArtifactOutcome `json:"artifacts"`
	CleanupError string            `json:"cleanup_error,omitempty"`
	Message      string            `json:"message"`
	Error        string            `json:"error,omitempty"`
	Statement    string            `json:"statement,omitempty"`
	States       []State           `json:"states"`
}

// Kind returns the error kind of the failure stage, or "" on success.
func (o RunOutcome) Kind() selection.Kind {
	switch o.FailureStage {
	case "":
		return ""
	case StageConfiguration:
		return selection.KindConfiguration
	case StageVerify:
		return selection.KindValidation
	case StageClassify, StageExecute:
		return selection.KindExecution
	case StageEmptyResult:
		return selection.KindEmptyResult
	case StagePlan:
		return selection.KindPlanning
	case StageCancelled:
		return selection.KindCancelled
	default:
		return selection.KindExport
	}
}
