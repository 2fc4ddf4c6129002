package signing

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/samber/mo"

	"hl_gateway/internal/domain"
)

// The phantom agent domain is fixed and unrelated to any live chain.
var l1Domain = apitypes.TypedDataDomain{
	Name:              "Exchange",
	Version:           "1",
	ChainId:           math.NewHexOrDecimal256(1337),
	VerifyingContract: common.Address{}.Hex(),
}

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var agentTypes = apitypes.Types{
	"EIP712Domain": eip712DomainType,
	"Agent": {
		{Name: "source", Type: "string"},
		{Name: "connectionId", Type: "bytes32"},
	},
}

// L1SigningHash returns the EIP-712 hash of the phantom agent
// {source, connectionId} for an action.
func L1SigningHash(action domain.Action, nonce uint64, chain domain.Chain, vault mo.Option[common.Address]) ([]byte, error) {
	connectionID, err := ActionHash(action, nonce, vault)
	if err != nil {
		return nil, err
	}
	return phantomAgentHash(connectionID, chain, action.ActionType())
}

func phantomAgentHash(connectionID common.Hash, chain domain.Chain, kind string) ([]byte, error) {
	td := apitypes.TypedData{
		Types:       agentTypes,
		PrimaryType: "Agent",
		Domain:      l1Domain,
		Message: apitypes.TypedDataMessage{
			"source":       chain.Source(),
			"connectionId": connectionID.Bytes(),
		},
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, &domain.SigningError{Action: kind, Err: err}
	}
	return hash, nil
}

// SignL1Action signs a trading action (order, cancel, leverage) through the
// phantom agent. An identity without a key yields a CapabilityError.
func SignL1Action(id *Identity, action domain.Action, nonce uint64, chain domain.Chain, vault mo.Option[common.Address]) (domain.Signature, error) {
	op := "<nil>"
	if action != nil {
		op = action.ActionType()
	}
	if !id.CanSign() {
		return domain.Signature{}, &domain.CapabilityError{Op: op, Identity: identityLabel(id)}
	}
	hash, err := L1SigningHash(action, nonce, chain, vault)
	if err != nil {
		return domain.Signature{}, err
	}
	return id.sign(op, hash)
}
