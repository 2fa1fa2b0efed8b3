package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RoundStatus string

const (
	RoundStatusRunning  RoundStatus = "running"
	RoundStatusComplete RoundStatus = "complete"
	RoundStatusFailed   RoundStatus = "failed"
)

// Round is the persisted record of one build round.
type Round struct {
	RoundID   string      `json:"round_id"`
	StartTime time.Time   `json:"start_time"`
	Passes    []string    `json:"passes"`
	Status    RoundStatus `json:"status"`

	// GraphHash combines the chunk graph hashes of the round's passes.
	GraphHash string `json:"graph_hash"`

	// ManifestFile and ManifestHash are set once the manifest is written.
	ManifestFile string `json:"manifest_file,omitempty"`
	ManifestHash string `json:"manifest_hash,omitempty"`

	// TraceHash is the hash of the canonical accumulator trace.
	TraceHash string `json:"trace_hash,omitempty"`
}

func (r Round) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RoundID) == "" {
		errs = append(errs, errors.New("round_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.Passes == nil {
		errs = append(errs, errors.New("passes must be an array (not null)"))
	}
	for i, p := range r.Passes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("passes[%d] must not be empty", i))
		}
	}
	switch r.Status {
	case RoundStatusRunning, RoundStatusFailed:
	case RoundStatusComplete:
		if r.ManifestHash == "" {
			errs = append(errs, errors.New("manifest_hash is required for a complete round"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if strings.TrimSpace(r.GraphHash) == "" {
		errs = append(errs, errors.New("graph_hash is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassConfig FailureClass = "config"
	FailureClassPass   FailureClass = "pass"
	FailureClassStage  FailureClass = "stage"
	FailureClassSystem FailureClass = "system"
)

// Failure is the recorded reason a round produced no manifest.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	PassID       *string      `json:"pass_id,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfig, FailureClassPass, FailureClassStage, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.PassID != nil && strings.TrimSpace(*f.PassID) == "" {
		errs = append(errs, errors.New("pass_id must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
