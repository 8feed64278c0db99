// services/ir/nec/encode.go
package nec

import (
	"time"

	"irremote-go/services/ir/capture"
)

const (
	// TrailingGap is the idle gap appended to synthesised sequences, in µs.
	TrailingGap = 40000
	// FramePeriod is the start-to-start spacing of a frame and its repeats.
	FramePeriod = 108 * time.Millisecond
	// Carrier is the modulation frequency in Hz.
	Carrier = 38000
)

// Encode synthesises the pulse sequence a receiver captures for c,
// including the trailing idle gap.
func Encode(c Code) capture.Sequence {
	seq := make(capture.Sequence, 0, FramePulses+1)
	seq = append(seq, LeaderMark, LeaderSpace)
	v := c.Uint32()
	for bit := Bits - 1; bit >= 0; bit-- {
		space := capture.Pulse(ZeroSpace)
		if v&(1<<uint(bit)) != 0 {
			space = OneSpace
		}
		seq = append(seq, BitMark, space)
	}
	return append(seq, TrailingMark, TrailingGap)
}

// EncodeRepeat synthesises a repeat frame with its trailing idle gap.
func EncodeRepeat() capture.Sequence {
	return capture.Sequence{LeaderMark, RepeatSpace, TrailingMark, TrailingGap}
}

// TimePair is a carrier-on duration followed by a carrier-off duration.
type TimePair [2]time.Duration

func us(n int) time.Duration { return time.Duration(n) * time.Microsecond }

// Pairs is Encode as mark/space pairs for a carrier transmitter. The last
// pair's space is zero; the sender owns inter-frame spacing.
func Pairs(c Code) []TimePair {
	out := make([]TimePair, 0, Bits+2)
	out = append(out, TimePair{us(LeaderMark), us(LeaderSpace)})
	v := c.Uint32()
	for bit := Bits - 1; bit >= 0; bit-- {
		space := ZeroSpace
		if v&(1<<uint(bit)) != 0 {
			space = OneSpace
		}
		out = append(out, TimePair{us(BitMark), us(space)})
	}
	return append(out, TimePair{us(TrailingMark), 0})
}

// RepeatPairs is EncodeRepeat as mark/space pairs.
func RepeatPairs() []TimePair {
	return []TimePair{{us(LeaderMark), us(RepeatSpace)}, {us(TrailingMark), 0}}
}

// Duration is the on-air time of pairs.
func Duration(pairs []TimePair) time.Duration {
	var d time.Duration
	for _, p := range pairs {
		d += p[0] + p[1]
	}
	return d
}
