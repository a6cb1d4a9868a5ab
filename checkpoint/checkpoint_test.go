package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
)

var (
	errSentinel = errors.New("sentinel")
	errReason   = errors.New("reason")
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantSame bool
	}{
		{name: "nil stays nil", err: nil, wantNil: true},
		{name: "io.EOF is passed through", err: io.EOF, wantSame: true},
		{name: "io.ErrUnexpectedEOF is passed through", err: io.ErrUnexpectedEOF, wantSame: true},
		{name: "other errors get a checkpoint", err: errReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("From() = %v, want nil", got)
				}
				return
			}
			if tt.wantSame && got != tt.err {
				t.Errorf("From() = %v, want %v unchanged", got, tt.err)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("From() = %v does not match %v", got, tt.err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if got := Wrap(nil, errSentinel); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
	if got := Wrap(io.EOF, errSentinel); got != io.EOF {
		t.Errorf("Wrap(io.EOF) = %v, want io.EOF", got)
	}

	err := Wrap(errReason, errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Errorf("Wrap() = %v, errors.Is(errSentinel) should be true", err)
	}
	if !errors.Is(err, errReason) {
		t.Errorf("Wrap() = %v, errors.Is(errReason) should be true", err)
	}
	if !strings.Contains(err.Error(), "checkpoint_test.go:") {
		t.Errorf("Wrap() = %q, should contain the caller position", err.Error())
	}
}

func TestWrap_As(t *testing.T) {
	pathErr := &os.PathError{Op: "open", Path: "/A.TXT", Err: os.ErrNotExist}
	err := Wrap(errReason, pathErr)

	var target *os.PathError
	if !errors.As(err, &target) {
		t.Fatalf("errors.As() should find the *os.PathError in %v", err)
	}
	if target.Path != "/A.TXT" {
		t.Errorf("errors.As() path = %v, want /A.TXT", target.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("errors.Is(os.ErrNotExist) should be true for %v", err)
	}
}

func TestMessage(t *testing.T) {
	outer := errors.New("could not read the directory")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "plain error",
			err:  errReason,
			want: "reason",
		},
		{
			name: "single checkpoint",
			err:  Wrap(fmt.Errorf("cluster %d is marked bad", 7), errSentinel),
			want: "sentinel: cluster 7 is marked bad",
		},
		{
			name: "nested checkpoints",
			err:  Wrap(From(Wrap(errReason, errSentinel)), outer),
			want: "could not read the directory: sentinel: reason",
		},
		{
			name: "repeated classification is collapsed",
			err:  Wrap(Wrap(errReason, errSentinel), errSentinel),
			want: "sentinel: reason",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
