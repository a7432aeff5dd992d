package midi

import "fmt"

// OpenError reports an output that could not be opened during discovery.
// It is terminal for the service.
type OpenError struct {
	ID    string
	Index int
	Err   error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("midi: open output %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
