package errors

// ErrorCode represents a machine-readable error code naming the pipeline
// stage that failed.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates an unknown provider or invalid option.
	// Fatal, surfaced before any I/O.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeDownload indicates the media download collaborator failed.
	ErrCodeDownload ErrorCode = "DOWNLOAD_ERROR"
	// ErrCodeTranscode indicates the audio extraction collaborator failed.
	ErrCodeTranscode ErrorCode = "TRANSCODE_ERROR"
	// ErrCodeUpload indicates the audio upload to a remote backend failed.
	ErrCodeUpload ErrorCode = "UPLOAD_ERROR"
	// ErrCodeSubmit indicates the recognition task submission failed.
	ErrCodeSubmit ErrorCode = "SUBMIT_ERROR"
	// ErrCodeRemoteTask indicates the backend reported a failed task or poll
	// retries were exhausted.
	ErrCodeRemoteTask ErrorCode = "REMOTE_TASK_ERROR"
	// ErrCodeRecognition indicates local model inference failed.
	ErrCodeRecognition ErrorCode = "RECOGNITION_ERROR"
	// ErrCodeTimeout indicates the poll loop or overall deadline elapsed.
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
	// ErrCodeCache indicates a non-fatal cache failure.
	ErrCodeCache ErrorCode = "CACHE_ERROR"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)
