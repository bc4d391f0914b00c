package errors_test

import (
	"errors"
	"fmt"
	"testing"

	berr "github.com/next-trace/scg-event-service/contract/errors"
)

func TestCodeAndVars(t *testing.T) {
	e := berr.Code(berr.ErrCodeConfiguration)
	if e.Error() != berr.ErrCodeConfiguration {
		t.Fatalf("unexpected error string: %s", e.Error())
	}

	// exported variables must carry their codes
	tests := []struct {
		err  error
		code string
	}{
		{berr.ErrConfiguration, berr.ErrCodeConfiguration},
		{berr.ErrPatternCompilation, berr.ErrCodePatternCompilation},
		{berr.ErrServiceInstantiation, berr.ErrCodeServiceInstantiation},
		{berr.ErrServiceExists, berr.ErrCodeServiceExists},
		{berr.ErrServiceNotFound, berr.ErrCodeServiceNotFound},
		{berr.ErrServiceClosed, berr.ErrCodeServiceClosed},
		{berr.ErrHandlerTypeMismatch, berr.ErrCodeHandlerTypeMismatch},
		{berr.ErrTargetReleased, berr.ErrCodeTargetReleased},
		{berr.ErrForwardFailed, berr.ErrCodeForwardFailed},
		{berr.ErrSerializationFailed, berr.ErrCodeSerializationFailed},
	}

	for _, tc := range tests {
		if !errors.Is(tc.err, berr.Code(tc.code)) {
			t.Fatalf("expected %s to be %s", tc.err, tc.code)
		}
	}
}

func TestWrappedCodesStillMatch(t *testing.T) {
	err := fmt.Errorf("lookup or create %q: %w", "svc", berr.ErrServiceInstantiation)
	if !errors.Is(err, berr.ErrServiceInstantiation) {
		t.Fatalf("wrapped error lost its code: %v", err)
	}

	if errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("codes must not alias each other")
	}
}
