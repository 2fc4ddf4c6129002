package domain

import (
	"context"
)

// StreamWorker defines the interface for the realtime WebSocket connector
type StreamWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// ActionSubmitter posts signed envelopes to the exchange endpoint
type ActionSubmitter interface {
	SubmitAction(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error)
}

// AgentRepository persists the agent registry
type AgentRepository interface {
	RecordAgent(ctx context.Context, rec AgentRecord) error
	ListAgents(ctx context.Context, network string) ([]AgentRecord, error)
}
