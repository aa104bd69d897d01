package chainhash

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// genesisHashStr is the hash of the first block in the chain.
const genesisHashStr = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"

func TestHashString(t *testing.T) {
	h, e := NewHashFromStr(genesisHashStr)
	if e != nil {
		t.Fatalf("NewHashFromStr: %v", e)
	}
	if got := h.String(); got != genesisHashStr {
		t.Errorf("String: got %v want %v", got, genesisHashStr)
	}
	if h[31] != 0x00 || h[0] != 0x6f {
		t.Errorf("hash bytes are not byte-reversed: %x", h[:])
	}
}

func TestNewHashFromStrTooLong(t *testing.T) {
	if _, e := NewHashFromStr(genesisHashStr + "00"); e != ErrHashStrSize {
		t.Errorf("got %v want %v", e, ErrHashStrSize)
	}
}

func TestSetBytes(t *testing.T) {
	var h Hash
	if e := h.SetBytes(make([]byte, 31)); e == nil {
		t.Errorf("SetBytes accepted a short slice")
	}
	b := bytes.Repeat([]byte{0xab}, HashSize)
	if e := h.SetBytes(b); e != nil {
		t.Fatalf("SetBytes: %v", e)
	}
	if !bytes.Equal(h.CloneBytes(), b) {
		t.Errorf("CloneBytes: got %x want %x", h.CloneBytes(), b)
	}
	other, _ := NewHash(b)
	if !h.IsEqual(other) {
		t.Errorf("IsEqual: hashes with the same bytes differ")
	}
}

func TestDoubleHash(t *testing.T) {
	// Checksum of the empty payload used by every empty-bodied message.
	want := "5df6e0e2"
	got := hex.EncodeToString(DoubleHashB(nil)[:4])
	if got != want {
		t.Errorf("DoubleHashB(nil): got %v want %v", got, want)
	}
	h := DoubleHashH([]byte("hello"))
	if !bytes.Equal(h[:], DoubleHashB([]byte("hello"))) {
		t.Errorf("DoubleHashH and DoubleHashB disagree")
	}
}
