package crypto

import (
	"encoding/json"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if len(addr.Bytes()) != 20 {
		t.Fatalf("expected 20-byte address, got %d", len(addr.Bytes()))
	}

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
	if decoded.Prefix() != MVPrefix {
		t.Fatalf("expected prefix %q, got %q", MVPrefix, decoded.Prefix())
	}
}

func TestAddressJSON(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()

	raw, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Address
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatal("json round trip mismatch")
	}

	var zero Address
	raw, err = json.Marshal(zero)
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if string(raw) != `""` {
		t.Fatalf("expected empty string for zero address, got %s", raw)
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("collateral-vault")
	b := ModuleAddress("collateral-vault")
	if !a.Equal(b) {
		t.Fatal("module address must be deterministic")
	}
	if a.Equal(ModuleAddress("auction-vault")) {
		t.Fatal("distinct modules must derive distinct addresses")
	}
	if a.IsZero() {
		t.Fatal("module address must not be zero")
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if !restored.PubKey().Address().Equal(key.PubKey().Address()) {
		t.Fatal("restored key derives a different address")
	}
}
