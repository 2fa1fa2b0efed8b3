package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid chunk graph")
	ErrCycleFound   = errors.New("cycle detected")
)

// GraphError reports why a pass's chunks cannot be put in load order.
// Chunk names the offending chunk when there is one; Cycle holds the
// parent cycle, closed on its first chunk, when Kind is ErrCycleFound.
type GraphError struct {
	Kind  error
	Chunk string
	Cycle []string
	Msg   string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case len(e.Cycle) > 0:
		return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Cycle, " -> "))
	case e.Chunk != "":
		return fmt.Sprintf("%v: chunk %q: %s", e.Kind, e.Chunk, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return e.Kind.Error()
}

func (e *GraphError) Unwrap() error { return e.Kind }

func chunkError(id, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Chunk: id, Msg: fmt.Sprintf(format, args...)}
}
