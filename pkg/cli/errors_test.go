package cli

import (
	"errors"
	"testing"
)

func TestConfigErrorWithField(t *testing.T) {
	err := NewConfigError("server.metrics_address", "missing required field")

	want := "configuration error at server.metrics_address: missing required field"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigErrorWithoutField(t *testing.T) {
	err := NewConfigError("", "failed to load config: no such file")

	want := "configuration error: failed to load config: no such file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandErrorNamesCommand(t *testing.T) {
	underlying := errors.New("loading catalog: bad yaml")
	err := NewCommandError("run", underlying)

	want := "run: loading catalog: bad yaml"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewCommandError("validate", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should reach the wrapped error")
	}
	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}
}
