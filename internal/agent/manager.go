// Package agent creates disposable trading keys and binds them to the
// durable identity.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"hl_gateway/internal/domain"
	"hl_gateway/internal/signing"
)

const labelPrefix = "hlmcp-"

// Registrar submits the approveAgent action signed by the durable identity.
type Registrar interface {
	ApproveAgent(ctx context.Context, durable *signing.Identity, agent common.Address, label string, nonce uint64) error
}

// NonceSource issues nonces for the approval.
type NonceSource interface {
	Next() uint64
}

// Recorder keeps a local history of created agents. Optional.
type Recorder interface {
	RecordAgent(ctx context.Context, rec domain.AgentRecord) error
}

// Manager creates, registers and persists agent keys.
type Manager struct {
	registrar Registrar
	nonces    NonceSource
	recorder  Recorder
	envPath   string
	network   domain.Chain
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager creates a manager that persists keys to envPath.
// recorder may be nil.
func NewManager(registrar Registrar, nonces NonceSource, recorder Recorder, envPath string, network domain.Chain) *Manager {
	return &Manager{
		registrar: registrar,
		nonces:    nonces,
		recorder:  recorder,
		envPath:   envPath,
		network:   network,
		now:       time.Now,
		logger:    slog.Default().With("module", "agent"),
	}
}

// Label derives the agent name from the UTC date, so runs on the same day
// share a label.
func Label(t time.Time) string {
	return labelPrefix + t.UTC().Format("010206")
}

// EnvPath returns where Persist writes the key.
func (m *Manager) EnvPath() string { return m.envPath }

// Create generates a fresh key and registers it against durable.
// Nothing is written to disk; a failed registration leaves no trace.
func (m *Manager) Create(ctx context.Context, durable *signing.Identity) (*signing.Identity, error) {
	if !durable.CanSign() {
		return nil, &domain.CapabilityError{Op: domain.ActionTypeApproveAgent, Identity: durable.String()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agentID, err := signing.GenerateIdentity()
	if err != nil {
		return nil, &domain.SigningError{Action: domain.ActionTypeApproveAgent, Err: err}
	}

	label := Label(m.now())
	nonce := m.nonces.Next()
	if err := m.registrar.ApproveAgent(ctx, durable, agentID.Address(), label, nonce); err != nil {
		m.logger.Warn("Agent registration failed",
			slog.String("agent", agentID.Address().Hex()),
			slog.String("label", label),
			slog.Any("error", err),
		)
		return nil, &domain.ActionError{Action: domain.ActionTypeApproveAgent, Identity: durable.String(), Err: err}
	}

	m.logger.Info("Agent registered",
		slog.String("agent", agentID.Address().Hex()),
		slog.String("label", label),
		slog.String("owner", durable.String()),
	)
	return agentID, nil
}

// Persist writes the agent's key into the env file and returns its path.
func (m *Manager) Persist(agentID *signing.Identity) (string, error) {
	if !agentID.CanSign() {
		return "", &domain.PersistenceError{Path: m.envPath, Err: errors.New("agent has no key material")}
	}
	if err := UpsertEnvRecord(m.envPath, AgentKeyName, agentID.PrivateKeyHex()); err != nil {
		return "", &domain.PersistenceError{Path: m.envPath, Err: err}
	}
	return m.envPath, nil
}

// CreateAndPersist registers a new agent and then persists it. When only
// persistence fails the registered agent is still returned together with a
// PersistenceError, since it is live on the exchange.
func (m *Manager) CreateAndPersist(ctx context.Context, durable *signing.Identity) (*signing.Identity, string, error) {
	agentID, err := m.Create(ctx, durable)
	if err != nil {
		return nil, "", err
	}

	path, perr := m.Persist(agentID)
	if perr != nil {
		m.logger.Error("Agent key not persisted",
			slog.String("agent", agentID.Address().Hex()),
			slog.Any("error", perr),
		)
	}
	m.record(ctx, durable, agentID, perr == nil)

	return agentID, path, perr
}

func (m *Manager) record(ctx context.Context, durable, agentID *signing.Identity, persisted bool) {
	if m.recorder == nil {
		return
	}
	rec := domain.AgentRecord{
		Address:   agentID.Address().Hex(),
		Label:     Label(m.now()),
		Network:   string(m.network),
		Owner:     durable.String(),
		Persisted: persisted,
		CreatedAt: m.now().UTC(),
	}
	if persisted {
		rec.EnvPath = m.envPath
	}
	if err := m.recorder.RecordAgent(ctx, rec); err != nil {
		m.logger.Warn("Failed to record agent", slog.Any("error", err))
	}
}
