package agreement

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a transfer stage gave up. Callers branch on
// the kind: a PollingTimeout is "check back later", an OnchainFailure is
// final, a Cancelled is the caller's own doing.
type FailureKind string

const (
	// ConfigurationError means a chain key is not in the endpoint table.
	ConfigurationError FailureKind = "configuration_error"

	// SubmissionError means the wallet engine rejected a batch, or a
	// batch could not be built at all.
	SubmissionError FailureKind = "submission_error"

	// OnchainFailure means a transaction mined but reverted or the
	// engine reported it failed.
	OnchainFailure FailureKind = "onchain_failure"

	// PollingTimeout means a stage exceeded its wall-clock budget.
	PollingTimeout FailureKind = "polling_timeout"

	// TransientReceiptFailure marks the known flaky mint-side signatures
	// (nonce desync, bundler timeout). Retried before escalation.
	TransientReceiptFailure FailureKind = "transient_receipt_failure"

	// Cancelled means the caller aborted the stage cooperatively.
	Cancelled FailureKind = "cancelled"
)

// Failure is the typed error every poller and submitter returns on a
// non-success exit. It always carries a human-readable message.
type Failure struct {
	Kind FailureKind
	Msg  string
	Err  error // underlying cause, may be nil
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure wraps err (may be nil) with a kind and a formatted message.
func NewFailure(kind FailureKind, err error, format string, args ...interface{}) *Failure {
	return &Failure{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// KindOf extracts the failure kind of err, or "" if err carries none.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	return KindOf(err) == kind
}
