package nrf70

import (
	"errors"
	"strconv"
)

var (
	ErrNoAcknowledgement = errors.New("nrf70: no wakeup acknowledgement")
	ErrTimeout           = errors.New("nrf70: timeout")
	ErrInvalidAddress    = errors.New("nrf70: invalid address")
	ErrInvalidArgument   = errors.New("nrf70: invalid argument")
	ErrNotInitialized    = errors.New("nrf70: not initialized")
	ErrBufferTooSmall    = errors.New("nrf70: buffer too small")
	ErrBufferOverflow    = errors.New("nrf70: buffer overflow")
	ErrNoData            = errors.New("nrf70: no data")
	ErrNotFound          = errors.New("nrf70: not found")
	ErrBusy              = errors.New("nrf70: busy")
	ErrScanAborted       = errors.New("nrf70: scan aborted")
	ErrLinkDown          = errors.New("nrf70: link down")
)

// NotHandledError is returned for data path packets and commands the driver
// does not process. Code is the unrecognized identifier.
type NotHandledError struct {
	What string
	Code uint32
}

func (e *NotHandledError) Error() string {
	return "nrf70: " + e.What + " not handled: " + strconv.FormatUint(uint64(e.Code), 10)
}

// CodedError is a failure status reported by the RPU firmware.
type CodedError struct {
	Status int32
}

func (e *CodedError) Error() string {
	return "nrf70: rpu returned status " + strconv.Itoa(int(e.Status))
}

// BusError is a failed bus transaction. The driver stops on bus errors
// since the RPU state is unknown afterwards.
type BusError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *BusError) Error() string {
	return "nrf70: bus " + e.Op + " at 0x" + hex32(e.Addr) + ": " + e.Err.Error()
}

func (e *BusError) Unwrap() error { return e.Err }

// errjoin returns an error that wraps the given errors.
// Any nil error values are discarded.
// errjoin returns nil if every value in errs is nil.
//
// A non-nil error returned by errjoin implements the Unwrap() []error method.
func errjoin(errs ...error) error {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	e := &joinError{
		errs: make([]error, 0, n),
	}
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	return e
}

type joinError struct {
	errs []error
}

func (e *joinError) Error() string {
	var b []byte
	for i, err := range e.errs {
		if i > 0 {
			b = append(b, ':', ' ')
		}
		b = append(b, err.Error()...)
	}
	return string(b)
}

func (e *joinError) Unwrap() []error {
	return e.errs
}
