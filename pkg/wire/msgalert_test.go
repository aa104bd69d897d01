package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/davecgh/go-spew/spew"

	"github.com/nb-coin/new-bitcoin/pkg/chainhash"
)

func testAlertPayload() *AlertPayload {
	return &AlertPayload{
		Version:    1,
		RelayUntil: 1329620535,
		Expiration: 1329792435,
		ID:         1010,
		Cancel:     1009,
		SetCancel:  []int32{1001, 1002},
		MinVer:     10000,
		MaxVer:     61000,
		SetSubVer:  []string{"/nbc:0.0.1/"},
		Priority:   100,
		Comment:    "",
		StatusBar:  "URGENT: upgrade required",
		Reserved:   "",
	}
}

// TestAlertPayloadLazy checks the payload is only parsed on demand and that the
// parse result is kept.
func TestAlertPayloadLazy(t *testing.T) {
	want := testAlertPayload()
	serialized, e := want.Bytes()
	if e != nil {
		t.Fatalf("Bytes: %v", e)
	}
	msg := NewMsgAlert(serialized, []byte{0x30})
	if msg.payload != nil {
		t.Fatalf("payload parsed before it was asked for")
	}
	got, e := msg.Payload()
	if e != nil {
		t.Fatalf("Payload: %v", e)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Payload\n got: %s want: %s", spew.Sdump(got), spew.Sdump(want))
	}
	again, _ := msg.Payload()
	if again != got {
		t.Errorf("Payload parsed twice")
	}
	// A broken payload reports the same error on every call.
	bad := NewMsgAlert(serialized[:10], nil)
	_, e1 := bad.Payload()
	_, e2 := bad.Payload()
	if e1 == nil || e1 != e2 {
		t.Errorf("broken payload errors: %v, %v", e1, e2)
	}
}

// TestAlertVerify signs an alert with a fresh key and checks the signature
// against the right and the wrong key.
func TestAlertVerify(t *testing.T) {
	serialized, e := testAlertPayload().Bytes()
	if e != nil {
		t.Fatal(e)
	}
	priv, e := btcec.NewPrivateKey()
	if e != nil {
		t.Fatal(e)
	}
	sig := ecdsa.Sign(priv, chainhash.DoubleHashB(serialized)).Serialize()
	msg := NewMsgAlert(serialized, sig)
	if e = msg.Verify(priv.PubKey().SerializeUncompressed()); e != nil {
		t.Errorf("Verify with the signing key: %v", e)
	}
	other, _ := btcec.NewPrivateKey()
	if e = msg.Verify(other.PubKey().SerializeCompressed()); e != ErrAlertSignature {
		t.Errorf("Verify with another key: got %v want %v", e, ErrAlertSignature)
	}
	tampered := NewMsgAlert(append(bytes.Repeat([]byte{0}, 1), serialized[1:]...), sig)
	if e = tampered.Verify(priv.PubKey().SerializeCompressed()); e != ErrAlertSignature {
		t.Errorf("Verify of a tampered payload: got %v want %v", e, ErrAlertSignature)
	}
	if e = msg.Verify([]byte{0x02, 0x01}); e == nil {
		t.Errorf("Verify accepted a malformed public key")
	}
}
