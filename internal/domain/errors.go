package domain

import "errors"

// Domain errors.
var (
	// ErrNoResults is returned when a search matched nothing.
	ErrNoResults = errors.New("no results found")

	// ErrSearchFailed is returned when the search backend fails.
	ErrSearchFailed = errors.New("search failed")

	// ErrDownloadFailed is returned when downloading or transcoding audio fails.
	ErrDownloadFailed = errors.New("audio download failed")

	// ErrDownloadTimeout is returned when the download exceeds its deadline.
	ErrDownloadTimeout = errors.New("audio download timed out")

	// ErrTooLarge is returned when the audio exceeds the delivery ceiling.
	ErrTooLarge = errors.New("audio file too large")

	// ErrDeliveryFailed is returned when sending the audio to the chat fails.
	ErrDeliveryFailed = errors.New("audio delivery failed")

	// ErrStorageFull is returned when the download directory lacks free space.
	ErrStorageFull = errors.New("insufficient storage space")


	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")
)

// PipelineError wraps an error with the request workspace and stage.
type PipelineError struct {
	Workspace WorkspaceID
	Stage     Stage
	Err       error
}

func (e *PipelineError) Error() string {
	if e.Workspace != "" {
		return string(e.Stage) + " [" + e.Workspace.String() + "]: " + e.Err.Error()
	}
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(ws WorkspaceID, stage Stage, err error) *PipelineError {
	return &PipelineError{
		Workspace: ws,
		Stage:     stage,
		Err:       err,
	}
}
