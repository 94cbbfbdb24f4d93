package xkb

import (
	"errors"
	"fmt"

	"github.com/danderson/xkb/fragments"
)

// ErrorCode is an X11 protocol error code.
type ErrorCode uint8

const (
	BadRequest        ErrorCode = 1
	BadValue          ErrorCode = 2
	BadAtom           ErrorCode = 5
	BadMatch          ErrorCode = 8
	BadAccess         ErrorCode = 10
	BadAlloc          ErrorCode = 11
	BadLength         ErrorCode = 16
	BadImplementation ErrorCode = 17

	// BadKeyboard is the XKB extension's own error. On the wire it
	// is sent as the extension's first error code, which the server
	// substitutes at dispatch time.
	BadKeyboard ErrorCode = 0xff
)

var errorNames = map[ErrorCode]string{
	BadRequest:        "BadRequest",
	BadValue:          "BadValue",
	BadAtom:           "BadAtom",
	BadMatch:          "BadMatch",
	BadAccess:         "BadAccess",
	BadAlloc:          "BadAlloc",
	BadLength:         "BadLength",
	BadImplementation: "BadImplementation",
	BadKeyboard:       "BadKeyboard",
}

func (c ErrorCode) String() string {
	if n, ok := errorNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Error(%d)", uint8(c))
}

// ProtocolError is the error returned when a request is rejected. It
// is reported to the client as an X11 error packet.
type ProtocolError struct {
	// Code is the X11 error code.
	Code ErrorCode
	// Value is the errorValue reported to the client. XKB packs
	// diagnostic information into it, see errCode4.
	Value uint32
	// Minor is the XKB request opcode that failed. The dispatcher
	// fills it in.
	Minor Opcode
	// Reason is a human-readable explanation, for logs. It is not
	// sent to the client.
	Reason error
}

func (e *ProtocolError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("%s (value 0x%08x)", e.Code, e.Value)
	}
	return fmt.Sprintf("%s (value 0x%08x): %s", e.Code, e.Value, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Reason
}

func protoErr(code ErrorCode, value uint32, reason string, args ...any) *ProtocolError {
	return &ProtocolError{
		Code:   code,
		Value:  value,
		Reason: fmt.Errorf(reason, args...),
	}
}

func errValue(value uint32, reason string, args ...any) *ProtocolError {
	return protoErr(BadValue, value, reason, args...)
}

func errMatch(value uint32, reason string, args ...any) *ProtocolError {
	return protoErr(BadMatch, value, reason, args...)
}

// errLength converts a short read from the request decoder into a
// BadLength error. Other errors are returned unchanged.
func errLength(err error) error {
	if err == nil {
		return nil
	}
	var lerr fragments.LengthError
	if errors.As(err, &lerr) {
		return &ProtocolError{Code: BadLength, Reason: err}
	}
	return err
}

// errCode2, errCode3 and errCode4 pack diagnostic values into an
// errorValue the way XKB clients expect to unpack them: the first
// argument identifies the failed check, the rest are the offending
// values.
func errCode2(a, b int) uint32 {
	return uint32(a&0xff)<<24 | uint32(b)&0xffffff
}

func errCode3(a, b, c int) uint32 {
	return uint32(a&0xff)<<24 | uint32(b&0xff)<<16 | uint32(c)&0xffff
}

func errCode4(a, b, c, d int) uint32 {
	return uint32(a&0xff)<<24 | uint32(b&0xff)<<16 | uint32(c&0xff)<<8 | uint32(d&0xff)
}

// AsProtocolError returns err as a *ProtocolError. Errors that are
// not protocol errors are reported as BadImplementation.
func AsProtocolError(err error) *ProtocolError {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProtocolError{Code: BadImplementation, Reason: err}
}
