package state

import (
	"errors"
	"strings"

	"assetmanifest/internal/core"
	"assetmanifest/internal/dag"
	"assetmanifest/internal/manifest"
)

// FailureFromError classifies err into a Failure record.
func FailureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var pe *core.PassError
	if errors.As(err, &pe) && pe != nil {
		return Failure{
			FailureClass: FailureClassPass,
			PassID:       optionalString(pe.PassID),
			ErrorCode:    "PassFailed",
			ErrorMessage: nonEmptyOr(errMessage(pe.Err), pe.Error()),
		}, nil
	}

	var se *manifest.StageError
	if errors.As(err, &se) && se != nil {
		return Failure{
			FailureClass: FailureClassStage,
			ErrorCode:    stageCode(se.Stage),
			ErrorMessage: se.Error(),
		}, nil
	}

	switch {
	case errors.Is(err, manifest.ErrInvalidConfig):
		return Failure{FailureClass: FailureClassConfig, ErrorCode: "InvalidConfig", ErrorMessage: err.Error()}, nil
	case errors.Is(err, core.ErrInvalidPass):
		return Failure{FailureClass: FailureClassPass, ErrorCode: "InvalidPass", ErrorMessage: err.Error()}, nil
	case errors.Is(err, dag.ErrCycleFound):
		return Failure{FailureClass: FailureClassPass, ErrorCode: "ChunkCycle", ErrorMessage: err.Error()}, nil
	case errors.Is(err, dag.ErrInvalidGraph):
		return Failure{FailureClass: FailureClassPass, ErrorCode: "InvalidChunkGraph", ErrorMessage: err.Error()}, nil
	}

	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: nonEmptyOr(err.Error(), "unknown error"),
	}, nil
}

func stageCode(s manifest.Stage) string {
	if s == "" {
		return "StageFailed"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:]) + "Failed"
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
