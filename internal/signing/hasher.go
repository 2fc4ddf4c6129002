// Package signing turns exchange actions into signatures. Trading actions go
// through a phantom agent envelope over the action digest; identity-level
// approvals are signed as explicit EIP-712 documents.
package signing

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/mo"
	"github.com/vmihailenco/msgpack/v5"

	"hl_gateway/internal/domain"
)

// ActionHash computes the connection id of an action:
// keccak256(msgpack(action) || nonce_be64 || vaultFlag).
// The result is a pure function of its inputs.
func ActionHash(action domain.Action, nonce uint64, vault mo.Option[common.Address]) (common.Hash, error) {
	if action == nil {
		return common.Hash{}, &domain.SerializationError{Action: "<nil>", Err: errors.New("nil action")}
	}
	kind := action.ActionType()
	if kind == "" {
		return common.Hash{}, &domain.SerializationError{Action: "<untyped>", Err: errors.New("action type is empty")}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return common.Hash{}, &domain.SerializationError{Action: kind, Err: err}
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	buf.Write(n[:])

	if addr, ok := vault.Get(); ok {
		buf.WriteByte(0x01)
		buf.Write(addr.Bytes())
	} else {
		buf.WriteByte(0x00)
	}

	return crypto.Keccak256Hash(buf.Bytes()), nil
}
