package domain

import "strings"

// Chain selects mainnet or testnet. It changes endpoints, the phantom
// agent source and the hyperliquidChain field of user-signed actions.
type Chain string

const (
	Mainnet Chain = "mainnet"
	Testnet Chain = "testnet"
)

// ParseChain maps "testnet"/"test" to Testnet and anything else to Mainnet.
func ParseChain(s string) Chain {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "testnet", "test":
		return Testnet
	default:
		return Mainnet
	}
}

// Source is the phantom agent "source" field.
func (c Chain) Source() string {
	if c == Testnet {
		return "b"
	}
	return "a"
}

// Name is the hyperliquidChain value used in user-signed actions.
func (c Chain) Name() string {
	if c == Testnet {
		return "Testnet"
	}
	return "Mainnet"
}

func (c Chain) RestURL() string {
	if c == Testnet {
		return "https://api.hyperliquid-testnet.xyz"
	}
	return "https://api.hyperliquid.xyz"
}

func (c Chain) WSURL() string {
	if c == Testnet {
		return "wss://api.hyperliquid-testnet.xyz/ws"
	}
	return "wss://api.hyperliquid.xyz/ws"
}
