// services/ir/nec/decode.go
package nec

import (
	"irremote-go/errcode"
	"irremote-go/services/ir/capture"
	"irremote-go/x/mathx"
)

// Nominal NEC timings in microseconds.
const (
	LeaderMark   = 9000
	LeaderSpace  = 4500
	RepeatSpace  = 2250
	BitMark      = 560
	ZeroSpace    = 560
	OneSpace     = 1690
	TrailingMark = 560

	// TolerancePct is the ± window applied to every nominal timing.
	TolerancePct = 25
	// LeaderSplit separates repeat leaders (below) from frame leaders.
	LeaderSplit = 3375
	// OneThreshold: a bit space at or above this decodes as 1.
	OneThreshold = 1000
	// MaxBitSpace: a space this long is the idle gap, not a bit.
	MaxBitSpace = 5000

	Bits = 32
	// FramePulses is leader + 32 bit pairs + trailing mark.
	FramePulses = 2 + 2*Bits + 1
)

type Kind uint8

const (
	KindError Kind = iota
	KindCode
	KindRepeat
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindRepeat:
		return "repeat"
	}
	return "error"
}

// Result is one decoder outcome: a Code, a repeat, or a decode error.
type Result struct {
	Kind Kind
	Code Code         // valid when Kind == KindCode
	Err  errcode.Code // valid when Kind == KindError
}

func codeResult(c Code) Result        { return Result{Kind: KindCode, Code: c} }
func errResult(e errcode.Code) Result { return Result{Kind: KindError, Err: e} }

var repeatResult = Result{Kind: KindRepeat}

func near(d capture.Pulse, n uint16) bool {
	return mathx.Within(uint16(d), n, TolerancePct)
}

// Decode classifies a pulse sequence. Address and command complements are
// not checked; see Code.Valid.
func Decode(seq capture.Sequence) Result {
	if len(seq) < 4 {
		return errResult(errcode.TooShort)
	}
	if !near(seq[0], LeaderMark) {
		return errResult(errcode.BadLeader)
	}

	if seq[1] < LeaderSplit {
		// Repeat: leader, short space, one mark, then nothing bit-like.
		if !near(seq[1], RepeatSpace) || !near(seq[2], TrailingMark) {
			return errResult(errcode.BadLeader)
		}
		if len(seq) > 3 && near(seq[3], BitMark) {
			return errResult(errcode.BadLeader)
		}
		return repeatResult
	}
	if !near(seq[1], LeaderSpace) {
		return errResult(errcode.BadLeader)
	}

	var acc uint32
	i := 2
	for bit := 0; bit < Bits; bit++ {
		if i+1 >= len(seq) {
			return errResult(errcode.Truncated)
		}
		mark, space := seq[i], seq[i+1]
		if !near(mark, BitMark) {
			return errResult(errcode.BadBit)
		}
		if space >= MaxBitSpace {
			return errResult(errcode.Truncated)
		}
		acc <<= 1
		if space >= OneThreshold {
			acc |= 1
		}
		i += 2
	}
	return codeResult(CodeFromUint32(acc))
}
