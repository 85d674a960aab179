package model

// ImportStage names the pipeline stage where an error occurred.
type ImportStage string

const (
	StageParse     ImportStage = "parse"
	StageResolve   ImportStage = "resolve"
	StagePersist   ImportStage = "persist"
	StageVisualize ImportStage = "visualize"
)

// ErrorKind classifies import errors.
type ErrorKind string

const (
	KindParse          ErrorKind = "parse_error"
	KindNoData         ErrorKind = "no_data_found"
	KindQuery          ErrorKind = "query_error"
	KindNoFeatureMatch ErrorKind = "no_feature_match"
	KindPersist        ErrorKind = "persist_error"
	KindVisualization  ErrorKind = "visualization_error"
)

// ImportError is a structured per-item failure.
type ImportError struct {
	Stage   ImportStage `json:"stage"`
	Item    string      `json:"item,omitempty"`
	Kind    ErrorKind   `json:"kind"`
	Message string      `json:"message"`
}

func (e ImportError) Error() string {
	if e.Item == "" {
		return e.Message
	}
	return e.Item + ": " + e.Message
}

// Outcome summarizes a finished batch.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// BatchResult accumulates the result of one import run. Never persisted.
type BatchResult struct {
	ImportedCount int           `json:"importedCount"`
	CreatedIDs    []string      `json:"createdMarketAreaIds"`
	Errors        []ImportError `json:"errors"`
}

// Outcome classifies the batch: any import is a (possibly partial) success.
func (r *BatchResult) Outcome() Outcome {
	switch {
	case r.ImportedCount == 0:
		return OutcomeFailed
	case len(r.Errors) > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// FirstError returns the first recorded error, if any.
func (r *BatchResult) FirstError() (ImportError, bool) {
	if len(r.Errors) == 0 {
		return ImportError{}, false
	}
	return r.Errors[0], true
}

// Messages renders every error as "<item>: <message>".
func (r *BatchResult) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}
