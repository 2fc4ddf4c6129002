package signing

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"hl_gateway/internal/domain"
)

const userTypePrefix = "HyperliquidTransaction:"

// userDomain binds approvals to the signature chain id carried in the action.
var userDomain = apitypes.TypedDataDomain{
	Name:              "HyperliquidSignTransaction",
	Version:           "1",
	ChainId:           math.NewHexOrDecimal256(421614),
	VerifyingContract: common.Address{}.Hex(),
}

// UserSigningHash returns the EIP-712 hash of a user-signed action.
func UserSigningHash(action domain.UserSignedAction) ([]byte, error) {
	primary := userTypePrefix + action.TypedName()

	fields := action.TypedFields()
	schema := make([]apitypes.Type, 0, len(fields))
	for _, f := range fields {
		schema = append(schema, apitypes.Type{Name: f.Name, Type: f.Type})
	}

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			primary:        schema,
		},
		PrimaryType: primary,
		Domain:      userDomain,
		Message:     action.TypedMessage(),
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, &domain.SigningError{Action: action.ActionType(), Err: err}
	}
	return hash, nil
}

// SignUserAction signs an approval with the durable identity. Signatures
// are deterministic (RFC 6979) for a given identity and action.
func SignUserAction(id *Identity, action domain.UserSignedAction) (domain.Signature, error) {
	if !id.CanSign() {
		return domain.Signature{}, &domain.CapabilityError{Op: action.ActionType(), Identity: identityLabel(id)}
	}
	hash, err := UserSigningHash(action)
	if err != nil {
		return domain.Signature{}, err
	}
	return id.sign(action.ActionType(), hash)
}
