package errors

// ErrorCode identifies an application error in API responses
type ErrorCode int

const (
	ErrorCode_HTTP_OK ErrorCode = 0

	// General
	ErrorCode_INTERNAL          ErrorCode = 1000
	ErrorCode_INVALID_ARGUMENT  ErrorCode = 1001
	ErrorCode_NOT_FOUND         ErrorCode = 1002
	ErrorCode_PERMISSION_DENIED ErrorCode = 1004
	ErrorCode_UNAUTHENTICATED   ErrorCode = 1005

	// Meetings
	ErrorCode_MEETING_NOT_FOUND  ErrorCode = 2000
	ErrorCode_JOB_NOT_FOUND      ErrorCode = 2001
	ErrorCode_INVALID_JOB_TYPE   ErrorCode = 2002
	ErrorCode_CONNECTION_MISSING ErrorCode = 2003
	ErrorCode_JOB_NOT_RETRYABLE  ErrorCode = 2004

	// Providers
	ErrorCode_PROVIDER_AUTH     ErrorCode = 3000
	ErrorCode_WEBHOOK_SIGNATURE ErrorCode = 3002

	// Infrastructure
	ErrorCode_STORAGE_FAILED ErrorCode = 4002
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCode_HTTP_OK:            "OK",
	ErrorCode_INTERNAL:           "INTERNAL",
	ErrorCode_INVALID_ARGUMENT:   "INVALID_ARGUMENT",
	ErrorCode_NOT_FOUND:          "NOT_FOUND",
	ErrorCode_PERMISSION_DENIED:  "PERMISSION_DENIED",
	ErrorCode_UNAUTHENTICATED:    "UNAUTHENTICATED",
	ErrorCode_MEETING_NOT_FOUND:  "MEETING_NOT_FOUND",
	ErrorCode_JOB_NOT_FOUND:      "JOB_NOT_FOUND",
	ErrorCode_INVALID_JOB_TYPE:   "INVALID_JOB_TYPE",
	ErrorCode_CONNECTION_MISSING: "CONNECTION_MISSING",
	ErrorCode_JOB_NOT_RETRYABLE:  "JOB_NOT_RETRYABLE",
	ErrorCode_PROVIDER_AUTH:      "PROVIDER_AUTH",
	ErrorCode_WEBHOOK_SIGNATURE:  "WEBHOOK_SIGNATURE",
	ErrorCode_STORAGE_FAILED:     "STORAGE_FAILED",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText renders the code by name in JSON bodies
func (c ErrorCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
