package extraction

// GenericFailure is shown when the backend failed without a usable message
const GenericFailure = "Failed to process invoice"

// NetworkError means no response arrived. The user may resubmit.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Unable to reach the extraction service"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// BackendError means the backend answered but did not produce a record. Message is the
// backend's own text when it sent one, GenericFailure otherwise.
type BackendError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
