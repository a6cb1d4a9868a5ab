// Package checkpoint decorates errors with the caller position of every place they pass through,
// which results in something similar to a stacktrace.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
// Message renders the same chain on one line without the positions, for end users.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// passThrough reports errors which callers compare by identity and which therefore must never be
// decorated. See https://github.com/golang/go/issues/39155
func passThrough(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// From adds a checkpoint with the position of its caller to err.
// It returns nil, if err == nil.
func From(err error) error {
	if err == nil || passThrough(err) {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap adds a checkpoint to prev and classifies it with err, usually a sentinel:
//  var ErrCorruptChain = errors.New("FAT chain is corrupt")
//
//  func walk(start uint32) error {
//  	return checkpoint.Wrap(fmt.Errorf("cluster %d is marked bad", start), ErrCorruptChain)
//  }
// Both errors.Is(err, ErrCorruptChain) and errors.Is on anything inside prev hold afterwards.
// Returns nil if prev == nil and prev itself if it is io.EOF.
// A nil err still creates a checkpoint.
func Wrap(prev, err error) error {
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(err, prev)
}

// newCheckpoint must be called directly by From or Wrap so that the caller depth fits.
func newCheckpoint(err, prev error) *checkpoint {
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) position() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

func (e *checkpoint) Error() string {
	prev := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prev = "File: unknown\n\t" + strings.ReplaceAll(prev, "\n", "\n\t")
	}

	if e.err == nil {
		return fmt.Sprintf("File: %s\n%v", e.position(), prev)
	}
	return fmt.Sprintf("File: %s\n\t%v\n%v", e.position(), e.err, prev)
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}

// Message renders the chain of err on a single line, outermost classification first,
// separated by ": ". Caller positions are left out and repeated classifications are collapsed.
func Message(err error) string {
	var parts []string
	add := func(s string) {
		if len(parts) == 0 || parts[len(parts)-1] != s {
			parts = append(parts, s)
		}
	}

	for err != nil {
		cp, ok := err.(*checkpoint)
		if !ok {
			add(err.Error())
			break
		}
		if cp.err != nil {
			add(cp.err.Error())
		}
		err = cp.prev
	}
	return strings.Join(parts, ": ")
}
