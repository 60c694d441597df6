package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobReady     JobStatus = "ready"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

type JobKind string

const (
	JobKindPipeline JobKind = "pipeline"
	JobKindRemix    JobKind = "remix"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// rank orders the forward lifecycle. Terminal states share the top rank.
func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 0
	case JobReady:
		return 1
	case JobRunning:
		return 2
	case JobCompleted, JobFailed, JobCancelled:
		return 3
	default:
		return -1
	}
}

func (s JobStatus) Valid() bool { return s.rank() >= 0 }

func (s JobStatus) Terminal() bool { return s.rank() == 3 }

// CanTransition reports whether a job or step may move from -> to.
// Moves are forward only; cancellation is allowed from any non-terminal state.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == JobCancelled {
		return true
	}
	return to.rank() > from.rank()
}

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown job status: %q", s)
	}
	return st, nil
}

type Job struct {
	ID        string         `json:"id"`
	SeriesID  string         `json:"seriesId"`
	Kind      JobKind        `json:"kind"`
	Status    JobStatus      `json:"status"`
	Error     string         `json:"error,omitempty"`
	Steps     []PipelineStep `json:"steps"`
	SourceID  *string        `json:"sourceJobId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Progress returns completed steps over total steps.
func (j Job) Progress() (done int, total int) {
	for _, st := range j.Steps {
		if st.Status == JobCompleted {
			done++
		}
	}
	return done, len(j.Steps)
}

type PipelineStep struct {
	ID            string     `json:"id"`
	JobID         string     `json:"jobId"`
	Index         int        `json:"index"`
	Status        JobStatus  `json:"status"`
	OutputImageID *string    `json:"outputImageId,omitempty"`
	Config        StepConfig `json:"config"`
}

type StepKind string

const (
	StepGenerate StepKind = "generate"
	StepRefine   StepKind = "refine"
	StepTouchup  StepKind = "touchup"
	StepUpscale  StepKind = "upscale"
)

// StepConfig is one of GenerateStep, RefineStep, TouchupStep or UpscaleStep.
type StepConfig interface {
	Kind() StepKind
	// Summary is a one-line description for listings.
	Summary() string
}

type GenerateStep struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type RefineStep struct {
	RefinementPrompt string `json:"refinementPrompt"`
	Model            string `json:"model,omitempty"`
}

type TouchupStep struct {
	Mode        string `json:"mode"`
	Instruction string `json:"instruction,omitempty"`
}

type UpscaleStep struct {
	Factor int `json:"factor"`
}

func (GenerateStep) Kind() StepKind { return StepGenerate }
func (RefineStep) Kind() StepKind   { return StepRefine }
func (TouchupStep) Kind() StepKind  { return StepTouchup }
func (UpscaleStep) Kind() StepKind  { return StepUpscale }

func (s GenerateStep) Summary() string { return "generate: " + s.Prompt }
func (s RefineStep) Summary() string   { return "refine: " + s.RefinementPrompt }
func (s TouchupStep) Summary() string {
	if s.Instruction == "" {
		return "touchup: " + s.Mode
	}
	return "touchup: " + s.Mode + ": " + s.Instruction
}
func (s UpscaleStep) Summary() string { return fmt.Sprintf("upscale: x%d", s.Factor) }

// MarshalStepConfig encodes cfg as a flat object carrying a "kind" discriminator.
func MarshalStepConfig(cfg StepConfig) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("nil step config")
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["kind"] = string(cfg.Kind())
	return json.Marshal(fields)
}

func UnmarshalStepConfig(b []byte) (StepConfig, error) {
	var head struct {
		Kind StepKind `json:"kind"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, err
	}
	var cfg StepConfig
	switch head.Kind {
	case StepGenerate:
		var c GenerateStep
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepRefine:
		var c RefineStep
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepTouchup:
		var c TouchupStep
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		cfg = c
	case StepUpscale:
		var c UpscaleStep
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, err
		}
		cfg = c
	default:
		return nil, fmt.Errorf("unknown step kind: %q", head.Kind)
	}
	return cfg, nil
}

func (p PipelineStep) MarshalJSON() ([]byte, error) {
	type alias PipelineStep
	var raw json.RawMessage
	if p.Config != nil {
		b, err := MarshalStepConfig(p.Config)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(struct {
		alias
		Config json.RawMessage `json:"config,omitempty"`
	}{alias: alias(p), Config: raw})
}

func (p *PipelineStep) UnmarshalJSON(b []byte) error {
	type alias PipelineStep
	var wire struct {
		alias
		Config json.RawMessage `json:"config,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*p = PipelineStep(wire.alias)
	p.Config = nil
	if len(wire.Config) > 0 && string(wire.Config) != "null" {
		cfg, err := UnmarshalStepConfig(wire.Config)
		if err != nil {
			return err
		}
		p.Config = cfg
	}
	return nil
}
