package tumorml

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestDetail(t *testing.T) {
	flagErr := errors.New("unknown shorthand flag: 'x' in -x")
	readErr := goerrors.Wrap(errors.New("open none.yaml: no such file or directory"),
		goerrors.CategoryBadInput, "read config file").WithTextCode("CONFIG_READ_FAILED")
	invalid := &goerrors.Error{
		Category: goerrors.CategoryValidation,
		Message:  "invalid configuration",
		ValidationErrors: goerrors.ValidationErrors{
			{Field: "color", Message: "color must be one of auto, always, never"},
			{Field: "jobs", Message: "jobs must be at least 1"},
		},
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "flag error",
			err:  WrapArgumentError(flagErr),
			want: "unknown shorthand flag: 'x' in -x",
		},
		{
			name: "config read error",
			err:  WrapArgumentError(readErr),
			want: "read config file: open none.yaml: no such file or directory",
		},
		{
			name: "config validation error",
			err:  WrapArgumentError(invalid),
			want: "invalid configuration: color: color must be one of auto, always, never; jobs: jobs must be at least 1",
		},
		{
			name: "plain error",
			err:  flagErr,
			want: "unknown shorthand flag: 'x' in -x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detail(tt.err); got != tt.want {
				t.Errorf("Detail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapArgumentErrorKeepsChain(t *testing.T) {
	flagErr := errors.New("unknown flag: --bogus")
	err := WrapArgumentError(flagErr)
	if !errors.Is(err, ErrMalformedArguments) {
		t.Error("wrapped error does not match ErrMalformedArguments")
	}
	if !errors.Is(err, flagErr) {
		t.Error("wrapped error does not match the flag error")
	}
	var gerr *goerrors.Error
	if !errors.As(err, &gerr) || gerr.TextCode != argumentsMalformedCode {
		t.Errorf("wrapped error carries no %s code: %v", argumentsMalformedCode, err)
	}
}
