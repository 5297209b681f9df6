package wsclient

// Error wraps a transport or API failure and implements ledger.Error.
type Error struct {
	err          error
	code         string
	notFound     bool
	timeout      bool
	disconnected bool
}

// newAPIError maps a node error response onto an Error.
func newAPIError(resp *response) *Error {
	e := &Error{
		err:  &apiError{code: resp.Error, message: resp.ErrorMessage},
		code: resp.Error,
	}
	switch resp.Error {
	case "actNotFound", "txnNotFound", "entryNotFound", "lgrNotFound":
		e.notFound = true
	case "tooBusy", "noNetwork":
		e.timeout = true
	}
	return e
}

type apiError struct {
	code    string
	message string
}

func (e *apiError) Error() string {
	if e.message == "" {
		return e.code
	}
	return e.code + ": " + e.message
}

// IsNotFound returns true if the requested resource does not exist.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsTimeout returns true if the request or validation wait timed out.
func (e *Error) IsTimeout() bool { return e.timeout }

// IsDisconnected returns true if the session dropped.
func (e *Error) IsDisconnected() bool { return e.disconnected }

// ResultCode returns the node's error or engine result code, if any.
func (e *Error) ResultCode() string { return e.code }

// Error implements the error interface.
func (e *Error) Error() string { return e.err.Error() }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }
