package engine

import "fmt"

// Render stages reported in RenderError.
const (
	StageValidate = "validate"
	StageLoad     = "load"
	StagePreload  = "preload"
	StageEncode   = "encode"
	StageRender   = "render"
	StageFinish   = "finish"
	StageMix      = "mix"
	StageProgress = "progress"
)

// RenderError wraps the first failure of a render with the stage it
// happened in.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed during %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &RenderError{Stage: stage, Err: err}
}
