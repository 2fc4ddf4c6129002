package signing

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestIdentityFromHex(t *testing.T) {
	want := common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	key := "0000000000000000000000000000000000000000000000000000000000000001"

	tests := []struct {
		name  string
		input string
	}{
		{"bare hex", key},
		{"0x prefix", "0x" + key},
		{"surrounding space", "  0x" + key + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := IdentityFromHex(tt.input)
			if err != nil {
				t.Fatalf("IdentityFromHex failed: %v", err)
			}
			if id.Address() != want {
				t.Errorf("Address() = %s, want %s", id.Address().Hex(), want.Hex())
			}
			if !id.CanSign() {
				t.Error("identity from key should sign")
			}
			if id.PrivateKeyHex() != "0x"+key {
				t.Errorf("PrivateKeyHex() = %s", id.PrivateKeyHex())
			}
		})
	}

	for _, bad := range []string{"", "0x", "zz", "0x1234"} {
		if _, err := IdentityFromHex(bad); err == nil {
			t.Errorf("IdentityFromHex(%q) should fail", bad)
		}
	}
}

func TestWatchOnly(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	id := WatchOnly(addr)
	if id.CanSign() {
		t.Error("watch-only identity must not sign")
	}
	if id.PrivateKeyHex() != "" {
		t.Error("watch-only identity has no key material")
	}
	if id.Address() != addr {
		t.Errorf("Address() = %s", id.Address().Hex())
	}
}

func TestGenerateIdentityIsUnique(t *testing.T) {
	a, err := GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	if a.Address() == b.Address() {
		t.Error("two generated identities share an address")
	}
	roundTrip, err := IdentityFromHex(a.PrivateKeyHex())
	if err != nil {
		t.Fatal(err)
	}
	if roundTrip.Address() != a.Address() {
		t.Error("key hex does not round-trip to the same address")
	}
}

func TestIdentityLogValueHidesKey(t *testing.T) {
	id, err := GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("identity", slog.Any("identity", id))

	out := buf.String()
	if strings.Contains(out, strings.TrimPrefix(id.PrivateKeyHex(), "0x")) {
		t.Fatal("private key leaked into log output")
	}
	if !strings.Contains(out, id.Address().Hex()) {
		t.Errorf("log output missing address: %s", out)
	}
}
