package tvapi

import "context"

// AccessProvider is the remote side of an access operation. Implementations
// distinguish two failure classes: a returned error means the call itself
// broke (transport, auth, 5xx) and deserves the longer backoff; a non-Success
// status means the remote answered and declined.
type AccessProvider interface {
	// PerformOperation grants the subject access to the target for the
	// given duration token ("7D", "1M", "1L" ...).
	PerformOperation(ctx context.Context, subject, target, durationSpec string) (OperationResult, error)

	// SubjectExists reports whether the subject is a known account.
	// A definitive "no" is (false, nil); (false, err) means undetermined.
	SubjectExists(ctx context.Context, subject string) (bool, error)
}
