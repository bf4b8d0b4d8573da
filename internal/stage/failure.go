package stage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
)

var (
	// ErrDegenerateGeometry marks input a step cannot compute anything from.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrInvalidInput marks configuration a step refuses to run with.
	ErrInvalidInput = errors.New("invalid input")
)

// Failure is a step body error. Owner is the derived object, zero for print
// steps.
type Failure struct {
	Owner   objectid.ID
	Step    string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Step)
	if f.Owner.Valid() {
		fmt.Fprintf(&b, " (object %s)", f.Owner)
	}
	b.WriteString(": ")
	b.WriteString(f.Message)
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail builds a Failure tagged with marker, one of the sentinels above.
func Fail(marker error, owner objectid.ID, step, message string) error {
	return &Failure{Owner: owner, Step: strings.TrimSpace(step), Message: strings.TrimSpace(message), Err: marker}
}

// AsFailure extracts the Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
