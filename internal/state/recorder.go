package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder writes round.json and failure.json records for build rounds.
type Recorder struct {
	Store *Store

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRoundID returns a random round identifier.
func NewRoundID() string { return uuid.NewString() }

// StartRound persists a running round record. A missing RoundID or
// StartTime is filled in; the saved record is returned.
func (r *Recorder) StartRound(round Round) (Round, error) {
	if r == nil || r.Store == nil {
		return Round{}, errors.New("Store is required")
	}
	if round.RoundID == "" {
		round.RoundID = NewRoundID()
	}
	if round.StartTime.IsZero() {
		round.StartTime = r.now()
	}
	if round.Passes == nil {
		round.Passes = []string{}
	}
	round.Status = RoundStatusRunning
	if err := r.Store.SaveRound(round); err != nil {
		return Round{}, err
	}
	return round, nil
}

// CompleteRound marks round complete with the written manifest's identity.
func (r *Recorder) CompleteRound(round Round, manifestFile, manifestHash, traceHash string) (Round, error) {
	if r == nil || r.Store == nil {
		return Round{}, errors.New("Store is required")
	}
	round.Status = RoundStatusComplete
	round.ManifestFile = manifestFile
	round.ManifestHash = manifestHash
	round.TraceHash = traceHash
	if err := r.Store.SaveRound(round); err != nil {
		return Round{}, err
	}
	if err := r.Store.ClearFailure(round.RoundID); err != nil {
		return Round{}, fmt.Errorf("clear failure: %w", err)
	}
	return round, nil
}

// RecordFailure marks round failed and writes the classified failure.
func (r *Recorder) RecordFailure(round Round, cause error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	f, err := FailureFromError(cause)
	if err != nil {
		return err
	}
	round.Status = RoundStatusFailed
	if err := r.Store.SaveRound(round); err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return r.Store.SaveFailure(round.RoundID, f)
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
