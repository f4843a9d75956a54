package errors

const (
	HttpInternalError           = "internal_error"
	HttpUnknownJobError         = "unknown_job"
	HttpJobRunningError         = "job_already_running"
	HttpJobFailedError          = "job_failed"
	HttpInvalidLimitError       = "invalid_limit"
	HttpHistoryUnavailableError = "history_unavailable"
)

// ErrorResponse is the error response body of the HTTP API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
