package signing

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"hl_gateway/internal/domain"
)

// Identity always has an address and can sign only when it holds a key.
// It is never mutated after construction and is safe to share.
type Identity struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// NewIdentity wraps a private key.
func NewIdentity(key *ecdsa.PrivateKey) *Identity {
	return &Identity{address: crypto.PubkeyToAddress(key.PublicKey), key: key}
}

// IdentityFromHex parses a 32-byte hex private key with or without 0x.
func IdentityFromHex(s string) (*Identity, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, errors.New("empty private key")
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewIdentity(key), nil
}

// WatchOnly returns an identity that can be queried but cannot sign.
func WatchOnly(addr common.Address) *Identity {
	return &Identity{address: addr}
}

// GenerateIdentity creates a fresh random key pair.
func GenerateIdentity() (*Identity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewIdentity(key), nil
}

func (i *Identity) Address() common.Address { return i.address }

func (i *Identity) CanSign() bool { return i != nil && i.key != nil }

// PrivateKeyHex returns the 0x-prefixed secret. Callers must not log it.
func (i *Identity) PrivateKeyHex() string {
	if !i.CanSign() {
		return ""
	}
	return hexutil.Encode(crypto.FromECDSA(i.key))
}

func (i *Identity) String() string {
	if i == nil {
		return "<none>"
	}
	return i.address.Hex()
}

// LogValue keeps key material out of structured logs.
func (i *Identity) LogValue() slog.Value {
	if i == nil {
		return slog.StringValue("<none>")
	}
	return slog.GroupValue(
		slog.String("address", i.address.Hex()),
		slog.Bool("can_sign", i.CanSign()),
	)
}

// sign produces an exchange-format signature over a 32-byte hash.
func (i *Identity) sign(op string, hash []byte) (domain.Signature, error) {
	if !i.CanSign() {
		return domain.Signature{}, &domain.CapabilityError{Op: op, Identity: identityLabel(i)}
	}
	sig, err := crypto.Sign(hash, i.key)
	if err != nil {
		return domain.Signature{}, &domain.SigningError{Action: op, Err: err}
	}
	return domain.Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

func identityLabel(i *Identity) string {
	if i == nil {
		return ""
	}
	return i.address.Hex()
}

// RecoverAddress returns the address that produced sig over hash.
func RecoverAddress(hash []byte, sig domain.Signature) (common.Address, error) {
	r, err := hexutil.Decode(sig.R)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode r: %w", err)
	}
	s, err := hexutil.Decode(sig.S)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode s: %w", err)
	}
	if len(r) > 32 || len(s) > 32 {
		return common.Address{}, errors.New("r or s longer than 32 bytes")
	}
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("invalid v %d", sig.V)
	}
	raw := make([]byte, 65)
	copy(raw[32-len(r):32], r)
	copy(raw[64-len(s):64], s)
	raw[64] = sig.V - 27

	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
