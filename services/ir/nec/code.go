// services/ir/nec/code.go
package nec

import (
	"irremote-go/errcode"
	"irremote-go/x/conv"
)

// Code is a decoded NEC payload in transmission order:
// address-high, address-low, command, command-inverse.
type Code [4]byte

// CodeFromUint32 splits v high byte first.
func CodeFromUint32(v uint32) Code {
	return Code{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Standard builds the classic 8-bit address form with both complements.
func Standard(addr, cmd byte) Code {
	return Code{addr, addr ^ 0xFF, cmd, cmd ^ 0xFF}
}

// Extended builds the 16-bit address form; only the command is complemented.
func Extended(addr uint16, cmd byte) Code {
	return Code{byte(addr >> 8), byte(addr), cmd, cmd ^ 0xFF}
}

func (c Code) Uint32() uint32 {
	return uint32(c[0])<<24 | uint32(c[1])<<16 | uint32(c[2])<<8 | uint32(c[3])
}

// String renders 8 upper-case hex digits, e.g. "FF02BF40".
func (c Code) String() string {
	var buf [8]byte
	return string(conv.U32Hex(buf[:], c.Uint32()))
}

// Address is the 16-bit extended address.
func (c Code) Address() uint16 { return uint16(c[0])<<8 | uint16(c[1]) }

func (c Code) Command() byte { return c[2] }

// Valid reports whether the command byte carries its complement.
func (c Code) Valid() bool { return c[2]^c[3] == 0xFF }

// IsStandard reports whether both address and command carry complements.
func (c Code) IsStandard() bool { return c.Valid() && c[0]^c[1] == 0xFF }

// ParseCode accepts up to 8 hex digits with optional 0x prefix and spacing.
func ParseCode(s string) (Code, error) {
	v, ok := conv.ParseHex32(s)
	if !ok {
		return Code{}, &errcode.E{C: errcode.InvalidParams, Op: "nec.ParseCode", Msg: "bad code " + quote(s)}
	}
	return CodeFromUint32(v), nil
}

// MarshalText lets codes appear as hex in JSON and YAML.
func (c Code) MarshalText() ([]byte, error) {
	var buf [8]byte
	return append([]byte(nil), conv.U32Hex(buf[:], c.Uint32())...), nil
}

func (c *Code) UnmarshalText(b []byte) error {
	v, err := ParseCode(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func quote(s string) string { return "\"" + s + "\"" }
