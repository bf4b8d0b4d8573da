// Package cancel implements the cooperative cancellation shared by the
// editor and the worker.
//
// A Controller holds one atomic status. The editor flips it to
// StatusInternal whenever it invalidates something a worker may be
// computing, and the user flips it to StatusUser. Neither path takes a lock,
// so the editor may call CancelInternal while holding the print mutex.
//
// Workers poll through a Token taken at the start of a processing run. A
// token also remembers the cancellation epoch it was issued in, so a run that
// started before an internal cancel keeps observing it even after the editor
// has reset the status for the next run.
package cancel

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrCanceled is returned by Check once cancellation was requested.
	ErrCanceled = errors.New("processing canceled")

	// ErrCanceledByUser is returned by Check for user cancellation. It wraps
	// ErrCanceled.
	ErrCanceledByUser = errors.Join(ErrCanceled, errors.New("canceled by user"))
)

// Status is the three-valued cancellation status.
type Status int32

const (
	StatusNotCanceled Status = iota
	StatusUser
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusNotCanceled:
		return "not_canceled"
	case StatusUser:
		return "canceled_by_user"
	case StatusInternal:
		return "canceled_internally"
	default:
		return "unknown"
	}
}

// Controller is safe for concurrent use. The zero value is not canceled.
type Controller struct {
	status atomic.Int32
	epoch  atomic.Uint64
	hook   atomic.Pointer[func()]
}

// New returns a controller in StatusNotCanceled.
func New() *Controller {
	return &Controller{}
}

// Status returns the current status.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// Cancel requests user cancellation. It persists until Reset.
func (c *Controller) Cancel() {
	c.epoch.Add(1)
	c.status.Store(int32(StatusUser))
	c.fire()
}

// CancelInternal requests cancellation on behalf of the editor. A pending
// user cancellation is left untouched.
func (c *Controller) CancelInternal() {
	c.epoch.Add(1)
	c.status.CompareAndSwap(int32(StatusNotCanceled), int32(StatusInternal))
	c.fire()
}

// ResetInternal clears an internal cancellation. User cancellation survives.
func (c *Controller) ResetInternal() {
	c.status.CompareAndSwap(int32(StatusInternal), int32(StatusNotCanceled))
}

// Reset clears any cancellation.
func (c *Controller) Reset() {
	c.status.Store(int32(StatusNotCanceled))
}

// OnCancel registers fn to run after every cancellation request. fn must not
// block or take locks the worker might hold.
func (c *Controller) OnCancel(fn func()) {
	if fn == nil {
		c.hook.Store(nil)
		return
	}
	c.hook.Store(&fn)
}

func (c *Controller) fire() {
	if fn := c.hook.Load(); fn != nil {
		(*fn)()
	}
}

// Token captures the current epoch for one processing run.
func (c *Controller) Token() Token {
	return Token{c: c, epoch: c.epoch.Load()}
}

// Token is a worker's view of the controller.
type Token struct {
	c     *Controller
	epoch uint64
}

// Check returns nil while the run may continue.
func (t Token) Check() error {
	if t.c == nil {
		return nil
	}
	switch Status(t.c.status.Load()) {
	case StatusUser:
		return ErrCanceledByUser
	case StatusInternal:
		return ErrCanceled
	}
	if t.c.epoch.Load() != t.epoch {
		return ErrCanceled
	}
	return nil
}

// Canceled reports whether Check would fail.
func (t Token) Canceled() bool {
	return t.Check() != nil
}

// IsCanceled reports whether err is a cancellation signal.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
