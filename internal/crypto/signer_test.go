package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

// Well-known test vector: the private key 0x...01 maps to this address.
const (
	testKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	testAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Address().Hex(); got != testAddress {
		t.Fatalf("address = %s, want %s", got, testAddress)
	}

	// A 0x prefix must be accepted too.
	s2, err := NewSigner("0x"+testKeyHex, 137)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Address() != s.Address() {
		t.Fatal("prefixed key derives a different address")
	}
}

func TestNewSignerRejectsInvalidKey(t *testing.T) {
	if _, err := NewSigner("not-hex", 137); err == nil {
		t.Fatal("expected error for invalid key")
	}
	if _, err := NewSigner("abcd", 137); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestSignAuthMessageShape(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatal(err)
	}

	sig, err := s.SignAuthMessage(testAddress, 1700000000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sig, "0x") {
		t.Fatalf("signature missing 0x prefix: %s", sig)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 65 {
		t.Fatalf("signature length = %d, want 65", len(raw))
	}
	if v := raw[64]; v != 27 && v != 28 {
		t.Fatalf("recovery byte = %d, want 27 or 28", v)
	}

	// ECDSA signing here is deterministic; identical inputs must reproduce
	// the signature exactly.
	again, err := s.SignAuthMessage(testAddress, 1700000000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again != sig {
		t.Fatal("signature is not deterministic")
	}
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatal(err)
	}

	order := OrderPayload{
		Salt:        "not-a-number",
		TokenID:     "1",
		MakerAmount: "1000000",
		TakerAmount: "500000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}
	if _, err := s.SignOrder(order); err == nil {
		t.Fatal("expected error for non-numeric salt")
	}
}

func TestL2HeadersAt(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("topsecret"))
	auth := &HMACAuth{Key: "key-1", Secret: secret, Passphrase: "pass"}

	headers := auth.L2HeadersAt(testAddress, "GET", "/orders", "", 1700000000)

	if headers["POLY_ADDRESS"] != testAddress {
		t.Fatalf("POLY_ADDRESS = %s", headers["POLY_ADDRESS"])
	}
	if headers["POLY_API_KEY"] != "key-1" || headers["POLY_PASSPHRASE"] != "pass" {
		t.Fatalf("credential headers = %v", headers)
	}
	if headers["POLY_TIMESTAMP"] != "1700000000" {
		t.Fatalf("POLY_TIMESTAMP = %s", headers["POLY_TIMESTAMP"])
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("1700000000GET/orders"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if headers["POLY_SIGNATURE"] != want {
		t.Fatalf("POLY_SIGNATURE = %s, want %s", headers["POLY_SIGNATURE"], want)
	}
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "key-123456", Secret: "secret-abcdef"}
	s := auth.String()
	if strings.Contains(s, "123456") || strings.Contains(s, "abcdef") {
		t.Fatalf("String leaks credentials: %s", s)
	}
}
