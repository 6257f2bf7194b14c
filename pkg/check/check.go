// Package check provides pluggable checking policies for fixed-capacity containers.
//
// Containers detect precondition violations (inserting into a full container,
// reading a missing key, addressing a position past the end) and hand them to a
// Policy. The policy decides what happens next: return an error, panic, log and
// continue, or terminate the process. Containers never hard-code that choice.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Sentinel violation errors.
var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrOutOfRange       = errors.New("out of range")
	ErrUnknownPolicy    = errors.New("unknown checking policy")
)

// abortExitCode is the process exit code used by Abort.
const abortExitCode = 134

// Kind classifies a violation.
type Kind uint8

const (
	// CapacityExceeded is reported when an insertion would exceed the fixed capacity.
	CapacityExceeded Kind = iota
	// OutOfRange is reported for missing keys and positions past the end.
	OutOfRange
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case CapacityExceeded:
		return "capacity_exceeded"
	case OutOfRange:
		return "out_of_range"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Violation describes a detected precondition violation.
type Violation struct {
	// Container names the container type, e.g. "fixedmap.Map".
	Container string
	// Key is the formatted key involved, if any.
	Key string
	// Capacity is the fixed capacity of the container.
	Capacity int
	// Index is the offending position, or -1 when not applicable.
	Index int
	Kind  Kind
}

// Error implements error.
func (v *Violation) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: %v (capacity %d", v.Container, v.Unwrap(), v.Capacity)

	if v.Index >= 0 {
		fmt.Fprintf(&sb, ", index %d", v.Index)
	}

	if v.Key != "" {
		fmt.Fprintf(&sb, ", key %s", v.Key)
	}

	sb.WriteString(")")

	return sb.String()
}

// Unwrap returns the sentinel error matching the violation kind.
func (v *Violation) Unwrap() error {
	if v.Kind == CapacityExceeded {
		return ErrCapacityExceeded
	}

	return ErrOutOfRange
}

// Capacity builds a capacity violation.
func Capacity(container string, capacity int) *Violation {
	return &Violation{Kind: CapacityExceeded, Container: container, Capacity: capacity, Index: -1}
}

// Range builds an out-of-range violation for a position.
func Range(container string, capacity, index int) *Violation {
	return &Violation{Kind: OutOfRange, Container: container, Capacity: capacity, Index: index}
}

// MissingKey builds an out-of-range violation for a key lookup.
func MissingKey(container string, capacity int, key any) *Violation {
	return &Violation{
		Kind: OutOfRange, Container: container, Capacity: capacity, Index: -1, Key: fmt.Sprint(key),
	}
}

// Policy decides how a violation is handled. The returned error, if any, is
// propagated to the caller of the container operation.
type Policy interface {
	Handle(v *Violation) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(v *Violation) error

// Handle implements Policy.
func (f PolicyFunc) Handle(v *Violation) error {
	return f(v)
}

// Return hands the violation back to the caller as an error.
type Return struct{}

// Handle implements Policy.
func (Return) Handle(v *Violation) error {
	return v
}

// Panic panics with the violation.
type Panic struct{}

// Handle implements Policy.
func (Panic) Handle(v *Violation) error {
	panic(v)
}

// Log records the violation at warn level and returns it so the container
// can fall back to its sentinel result.
type Log struct {
	Logger *slog.Logger
}

// Handle implements Policy.
func (l Log) Handle(v *Violation) error {
	logger(l.Logger).LogAttrs(context.Background(), slog.LevelWarn, "container precondition violated", attrs(v)...)

	return v
}

// Abort logs the violation and terminates the process.
type Abort struct {
	Logger *slog.Logger
	// Exit replaces os.Exit, mainly for tests.
	Exit func(code int)
}

// Handle implements Policy.
func (a Abort) Handle(v *Violation) error {
	logger(a.Logger).LogAttrs(context.Background(), slog.LevelError, "container precondition violated, aborting", attrs(v)...)

	exit := a.Exit
	if exit == nil {
		exit = os.Exit
	}

	exit(abortExitCode)

	return v
}

// ByName returns the policy registered under name: "return", "panic", "log" or "abort".
func ByName(name string, log *slog.Logger) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "return":
		return Return{}, nil
	case "panic":
		return Panic{}, nil
	case "log":
		return Log{Logger: log}, nil
	case "abort":
		return Abort{Logger: log}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Default returns the policy used when a container is built without one.
func Default() Policy {
	return Return{}
}

func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}

	return slog.Default()
}

func attrs(v *Violation) []slog.Attr {
	out := []slog.Attr{
		slog.String("container", v.Container),
		slog.String("kind", v.Kind.String()),
		slog.Int("capacity", v.Capacity),
	}

	if v.Index >= 0 {
		out = append(out, slog.Int("index", v.Index))
	}

	if v.Key != "" {
		out = append(out, slog.String("key", v.Key))
	}

	return out
}
