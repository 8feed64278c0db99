package nec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"irremote-go/errcode"
	"irremote-go/services/ir/capture"
)

var adafruitVolUp = Code{0xFF, 0x02, 0xBF, 0x40}

func expectErr(t *testing.T, seq capture.Sequence, want errcode.Code) {
	t.Helper()
	r := Decode(seq)
	if r.Kind != KindError || r.Err != want {
		t.Fatalf("Decode = %+v, want error %q", r, want)
	}
}

func expectCode(t *testing.T, seq capture.Sequence, want Code) {
	t.Helper()
	r := Decode(seq)
	if r.Kind != KindCode || r.Code != want {
		t.Fatalf("Decode = %+v, want code %v", r, want)
	}
}

func TestDecode_ShortSequencesAreTooShort(t *testing.T) {
	vals := []capture.Pulse{1, 560, 1690, 2250, 4500, 9000, 65535}
	expectErr(t, nil, errcode.TooShort)
	for _, a := range vals {
		expectErr(t, capture.Sequence{a}, errcode.TooShort)
		for _, b := range vals {
			expectErr(t, capture.Sequence{a, b}, errcode.TooShort)
			for _, c := range vals {
				expectErr(t, capture.Sequence{a, b, c}, errcode.TooShort)
			}
		}
	}
}

func TestDecode_RoundTripAllStandardCodes(t *testing.T) {
	for a := 0; a < 256; a++ {
		for c := 0; c < 256; c++ {
			code := Standard(byte(a), byte(c))
			r := Decode(Encode(code))
			if r.Kind != KindCode || r.Code != code {
				t.Fatalf("round trip %v: got %+v", code, r)
			}
		}
	}
}

func TestDecode_ThroughCapture(t *testing.T) {
	for _, code := range []Code{adafruitVolUp, Standard(0x00, 0x45), Extended(0x1234, 0x07)} {
		frame := Encode(code)
		stamps := capture.FromPulses(1000, frame[:FramePulses]...)
		seq, err := capture.ReadPulses(context.Background(), capture.NewSliceSource(stamps...), 20_000, capture.Capacity)
		if err != nil {
			t.Fatalf("%v: capture: %v", code, err)
		}
		if len(seq) != FramePulses+1 {
			t.Fatalf("%v: captured %d pulses", code, len(seq))
		}
		expectCode(t, seq, code)
	}
}

// -----------------------------------------------------------------------------
// Scenarios
// -----------------------------------------------------------------------------

func TestDecode_AdafruitVolumeUp(t *testing.T) {
	expectCode(t, Encode(adafruitVolUp), adafruitVolUp)
	if adafruitVolUp.IsStandard() {
		t.Fatal("0xFF/0x02 address is not complemented")
	}
	if !adafruitVolUp.Valid() {
		t.Fatal("command complement holds")
	}
}

func TestDecode_Repeat(t *testing.T) {
	if r := Decode(EncodeRepeat()); r.Kind != KindRepeat {
		t.Fatalf("Decode(repeat) = %+v", r)
	}
	// A repeat followed by something bit-like is not a repeat.
	expectErr(t, capture.Sequence{9000, 2250, 560, 560, 560}, errcode.BadLeader)
	// Short space that is neither repeat nor frame.
	expectErr(t, capture.Sequence{9000, 1200, 560, 40000}, errcode.BadLeader)
}

func TestDecode_Truncated(t *testing.T) {
	full := Encode(adafruitVolUp)
	// 20 of 32 bit pairs, buffer ends.
	expectErr(t, full[:2+2*20], errcode.Truncated)
	// 20 bit marks then the idle gap.
	withGap := append(capture.Sequence{}, full[:2+2*19+1]...)
	withGap = append(withGap, TrailingGap)
	expectErr(t, withGap, errcode.Truncated)
}

func TestDecode_BadLeader(t *testing.T) {
	seq := Encode(adafruitVolUp)
	seq[0] = 4000
	expectErr(t, seq, errcode.BadLeader)

	seq = Encode(adafruitVolUp)
	seq[1] = 6000
	expectErr(t, seq, errcode.BadLeader)
}

func TestDecode_BadBit(t *testing.T) {
	seq := Encode(adafruitVolUp)
	seq[2+2*7] = 300
	expectErr(t, seq, errcode.BadBit)
}

// -----------------------------------------------------------------------------
// Boundaries
// -----------------------------------------------------------------------------

func TestDecode_LeaderSpaceSplit(t *testing.T) {
	seq := Encode(adafruitVolUp)
	seq[1] = LeaderSplit
	expectCode(t, seq, adafruitVolUp)

	seq[1] = LeaderSplit - 1
	expectErr(t, seq, errcode.BadLeader)
}

func TestDecode_BitSpaceThreshold(t *testing.T) {
	seq := Encode(Code{})
	for i := 3; i < 2+2*Bits; i += 2 {
		seq[i] = OneThreshold
	}
	expectCode(t, seq, Code{0xFF, 0xFF, 0xFF, 0xFF})

	for i := 3; i < 2+2*Bits; i += 2 {
		seq[i] = OneThreshold - 1
	}
	expectCode(t, seq, Code{})
}

func TestDecode_LeaderTolerance(t *testing.T) {
	cases := []struct {
		mark capture.Pulse
		ok   bool
	}{
		{6749, false},
		{6750, true},
		{9000, true},
		{11250, true},
		{11251, false},
	}
	for _, tc := range cases {
		seq := Encode(adafruitVolUp)
		seq[0] = tc.mark
		r := Decode(seq)
		if (r.Kind == KindCode) != tc.ok {
			t.Errorf("leader mark %d: got %+v", tc.mark, r)
		}
	}
}

// -----------------------------------------------------------------------------
// Code helpers and encoder
// -----------------------------------------------------------------------------

func TestCode_Formatting(t *testing.T) {
	if got := adafruitVolUp.String(); got != "FF02BF40" {
		t.Fatalf("String = %q", got)
	}
	if got := Standard(0x00, 0x45).String(); got != "00FF45BA" {
		t.Fatalf("Standard = %q", got)
	}
	if adafruitVolUp.Address() != 0xFF02 || adafruitVolUp.Command() != 0xBF {
		t.Fatalf("Address/Command = %#x/%#x", adafruitVolUp.Address(), adafruitVolUp.Command())
	}
	for _, s := range []string{"FF02BF40", "0xff02bf40", "FF02 BF40"} {
		c, err := ParseCode(s)
		if err != nil || c != adafruitVolUp {
			t.Errorf("ParseCode(%q) = %v, %v", s, c, err)
		}
	}
	if _, err := ParseCode("nope"); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("ParseCode(nope) err = %v", err)
	}
}

func TestCode_JSONText(t *testing.T) {
	b, err := json.Marshal(struct{ C Code }{adafruitVolUp})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"C":"FF02BF40"}` {
		t.Fatalf("json = %s", b)
	}
	var back struct{ C Code }
	if err := json.Unmarshal(b, &back); err != nil || back.C != adafruitVolUp {
		t.Fatalf("unmarshal = %v, %v", back.C, err)
	}
}

func TestPairs(t *testing.T) {
	p := Pairs(Standard(0x10, 0x20))
	if len(p) != Bits+2 {
		t.Fatalf("len = %d", len(p))
	}
	// Standard codes carry 16 ones and 16 zeros.
	want := (LeaderMark + LeaderSpace + Bits*BitMark + 16*OneSpace + 16*ZeroSpace + TrailingMark) * time.Microsecond
	if got := Duration(p); got != want {
		t.Fatalf("Duration = %v, want %v", got, want)
	}
	if got := Duration(RepeatPairs()); got != 11810*time.Microsecond {
		t.Fatalf("repeat Duration = %v", got)
	}
	if Duration(p) >= FramePeriod {
		t.Fatal("frame must fit in one period")
	}
}
