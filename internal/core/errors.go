package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityUnavailable reports an extraction tool missing at process start.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrNoText means extraction ran but found no usable text.
	ErrNoText = errors.New("no extractable text")
	// ErrNoAudioTrack means an audio-visual file carries no audio stream.
	ErrNoAudioTrack = errors.New("no audio track")
	// ErrUnsupportedReference means no fetcher backend accepts the reference.
	ErrUnsupportedReference = errors.New("unsupported source reference")
	// ErrConfirmationUnresolved means the large-file confirmation was still
	// pending after one resubmit.
	ErrConfirmationUnresolved = errors.New("confirmation redirect not resolved")
)

// State is a step of the ingestion state machine.
type State string

const (
	StatePending    State = "Pending"
	StateFetching   State = "Fetching"
	StateDetecting  State = "Detecting"
	StateExtracting State = "Extracting"
	StateChunking   State = "Chunking"
	StateIndexing   State = "Indexing"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Reason tags why a job ended in StateFailed.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonFetchError        Reason = "FetchError"
	ReasonUnknownFormat     Reason = "UnknownFormat"
	ReasonExtractionFailure Reason = "ExtractionFailure"
	ReasonEmptyChunks       Reason = "EmptyChunks"
	ReasonIndexError        Reason = "IndexError"
)

// ReasonFor maps a failing stage to its reason tag.
func ReasonFor(stage State) Reason {
	switch stage {
	case StateFetching:
		return ReasonFetchError
	case StateDetecting:
		return ReasonUnknownFormat
	case StateExtracting:
		return ReasonExtractionFailure
	case StateChunking:
		return ReasonEmptyChunks
	case StateIndexing:
		return ReasonIndexError
	default:
		return ReasonNone
	}
}

// PipelineError is a job-terminal failure tagged with its reason.
type PipelineError struct {
	Stage  State
	Reason Reason
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Fail wraps err as a failure of stage. An error that already carries a
// reason is returned unchanged.
func Fail(stage State, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Reason: ReasonFor(stage), Err: err}
}

// ReasonOf extracts the reason tag from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ReasonNone
}
