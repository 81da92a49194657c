package hqmf

import (
	"errors"
	"fmt"
)

// ErrFatalData marks a document the engine cannot interpret: an unknown
// definition, value type or demographic code, a missing occurrence mapping,
// conflicting derivation operators, or a dangling child reference. A fatal
// error aborts the whole extraction; there is no partial result.
var ErrFatalData = errors.New("fatal data error")

// DataError is a fatal extraction error tied to one criteria entry.
type DataError struct {
	EntryID string
	Reason  string
	Err     error
}

func (e *DataError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.EntryID == "" {
		return "hqmf: " + msg
	}
	return fmt.Sprintf("hqmf: entry %s: %s", e.EntryID, msg)
}

// Is lets callers match every DataError with errors.Is(err, ErrFatalData).
func (e *DataError) Is(target error) bool {
	return target == ErrFatalData
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func fatalf(entryID, format string, args ...any) error {
	return &DataError{EntryID: entryID, Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err came from a document the engine rejected.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalData)
}

// Diagnostic codes.
const (
	DiagMissingReference = "MISSING_DC_REF"
)

// Diagnostic is a non-fatal finding recorded while extracting a document.
type Diagnostic struct {
	Code        string `json:"code"`
	EntryID     string `json:"entry_id"`
	ReferenceID string `json:"reference_id,omitempty"`
	Message     string `json:"message"`
}
