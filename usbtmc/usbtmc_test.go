package usbtmc

import (
	"encoding/binary"
	"testing"
)

func TestTagsSkipZero(t *testing.T) {
	g := &tagGen{value: 254}
	seen := map[byte]bool{}
	for i := 0; i < 3; i++ {
		tag := g.next()
		if tag == 0 {
			t.Error("issued the forbidden bTag 0")
		}
		if seen[tag] {
			t.Errorf("tag %d issued twice in a row", tag)
		}
		seen[tag] = true
	}
}

func TestInvTag(t *testing.T) {
	for _, b := range []byte{1, 0x7f, 0xfe} {
		if invTag(b)&b != 0 {
			t.Errorf("invTag(%#x) = %#x shares bits with its tag", b, invTag(b))
		}
		if invTag(b)|b != 0xff {
			t.Errorf("invTag(%#x) = %#x is not the bitwise inverse", b, invTag(b))
		}
	}
}

func TestOutHeaderLayout(t *testing.T) {
	h := outHeader(5, 9)
	if h[0] != msgDevDepOut {
		t.Errorf("msgID = %#x, want DEV_DEP_MSG_OUT", h[0])
	}
	if h[1] != 5 || h[2] != invTag(5) {
		t.Errorf("tag fields = %#x %#x, want 5 and its inverse", h[1], h[2])
	}
	if got := binary.LittleEndian.Uint32(h[4:8]); got != 9 {
		t.Errorf("transferSize = %d, want 9", got)
	}
	if h[8] != 0x01 {
		t.Error("EOM bit not set")
	}
}

func TestInHeaderLayout(t *testing.T) {
	h := inHeader(7, 1500, '\n')
	if h[0] != msgReqDevDepIn {
		t.Errorf("msgID = %#x, want REQUEST_DEV_DEP_MSG_IN", h[0])
	}
	if got := binary.LittleEndian.Uint32(h[4:8]); got != 1500 {
		t.Errorf("transferSize = %d, want 1500", got)
	}
	if h[8] != 0x02 || h[9] != '\n' {
		t.Errorf("terminator fields = %#x %#x, want enabled with newline", h[8], h[9])
	}
}

func TestParseInHeader(t *testing.T) {
	h := outHeader(1, 42)
	n, err := parseInHeader(h[:])
	if err != nil {
		t.Fatalf("parse errored: %v", err)
	}
	if n != 42 {
		t.Errorf("payload length = %d, want 42", n)
	}
	if _, err := parseInHeader(h[:4]); err == nil {
		t.Error("expected an error for a truncated header")
	}
}
