package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_ExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"success no message", cli.Exit("", 0), 0, ""},
		{"input error", cli.Exit("record 12 precedes record 11", 1), 1, "record 12 precedes record 11"},
		{"sink failure", cli.Exit("disk full", 2), 2, "disk full"},
		{"invariant failure", cli.Exit("", 3), 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCoder cli.ExitCoder
			if !errors.As(tt.err, &exitCoder) {
				t.Fatalf("error should be cli.ExitCoder")
			}
			if exitCoder.ExitCode() != tt.wantCode {
				t.Errorf("exit code = %d, want %d", exitCoder.ExitCode(), tt.wantCode)
			}
			if got := exitMessage(exitCoder); got != tt.wantMsg {
				t.Errorf("exitMessage = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestExitErrHandler_WrappedExitCoder(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), cli.Exit("inner error", 42))

	var exitCoder cli.ExitCoder
	if !errors.As(wrapped, &exitCoder) {
		t.Fatal("wrapped error should still match cli.ExitCoder")
	}
	if exitCoder.ExitCode() != 42 {
		t.Errorf("exit code = %d, want 42", exitCoder.ExitCode())
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	var exitCoder cli.ExitCoder
	if errors.As(errors.New("regular error"), &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}

// TestRunExitCodes checks that every outcome maps to the documented code.
func TestRunExitCodes(t *testing.T) {
	codes := map[types.OutcomeStatus]int{
		types.OutcomeSuccess:          0,
		types.OutcomeInputError:       1,
		types.OutcomeCancelled:        1,
		types.OutcomeSinkFailure:      2,
		types.OutcomeInvariantFailure: 3,
	}
	for status, want := range codes {
		if got := runtime.ExitCode(status); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", status, got, want)
		}
	}
}
