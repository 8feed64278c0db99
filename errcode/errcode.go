package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	InvalidConfig Code = "invalid_config"
	UnknownPin    Code = "unknown_pin"
	Timeout       Code = "timeout"
	NotConnected  Code = "not_connected"

	// Pulse capture / NEC decode. Always returned as data, never raised.
	TooShort  Code = "too_short"  // buffer too small to hold a frame
	BadLeader Code = "bad_leader" // leader mark or space out of tolerance
	BadBit    Code = "bad_bit"    // bit mark out of tolerance mid-frame
	Truncated Code = "truncated"  // buffer ended before 32 bits decoded

	Error Code = "error" // generic fallback
)

// IsDecode reports whether c is one of the decode failure kinds.
func (c Code) IsDecode() bool {
	switch c {
	case TooShort, BadLeader, BadBit, Truncated:
		return true
	}
	return false
}

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap returns an *E carrying c, the operation and the cause.
func Wrap(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return Of(inner)
		}
	}
	return Error
}
