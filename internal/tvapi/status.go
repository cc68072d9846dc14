package tvapi

import "fmt"

// OperationStatus is the provider's verdict on a single access operation.
// A status other than Success is a soft failure: the remote answered, the
// outcome was just not the one asked for.
type OperationStatus int

const (
	StatusSuccess OperationStatus = iota
	StatusFailure
	StatusNotApplicable
)

func (s OperationStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusNotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire status string back to the enum. Unknown strings
// are an error so gateway contract drift surfaces instead of silently
// counting as failures.
func ParseStatus(s string) (OperationStatus, error) {
	switch s {
	case "success":
		return StatusSuccess, nil
	case "failure":
		return StatusFailure, nil
	case "not_applicable":
		return StatusNotApplicable, nil
	default:
		return StatusFailure, fmt.Errorf("tvapi: unknown operation status %q", s)
	}
}

// OperationResult carries the provider verdict plus a human-readable detail
// for progress lines and run records.
type OperationResult struct {
	Status OperationStatus `json:"status"`
	Detail string          `json:"detail,omitempty"`
}
