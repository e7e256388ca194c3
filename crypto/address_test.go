package crypto

import (
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0xab
	raw[19] = 0x01
	addr := NewAddress(ApexPrefix, raw)

	encoded := addr.String()
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: got %s want %s", decoded, addr)
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	if _, err := DecodeAddress("cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq68d2cp"); err == nil {
		t.Fatal("expected foreign prefix to be rejected")
	}
}

func TestAddressIsZero(t *testing.T) {
	var empty Address
	if !empty.IsZero() {
		t.Fatal("empty address should be zero")
	}
	raw := make([]byte, AddressLength)
	if !NewAddress(ApexPrefix, raw).IsZero() {
		t.Fatal("all-zero bytes should be zero")
	}
	raw[3] = 1
	if NewAddress(ApexPrefix, raw).IsZero() {
		t.Fatal("non-zero bytes reported zero")
	}
}

func TestNewAddressCopiesInput(t *testing.T) {
	raw := make([]byte, AddressLength)
	addr := NewAddress(ApexPrefix, raw)
	raw[0] = 0xff
	if addr.Bytes()[0] != 0 {
		t.Fatal("address aliased caller slice")
	}
}
