package domain

import (
	"time"
)

// AgentRecord is one agent key created by this gateway. The key itself is
// never stored here; it lives only in the env file.
type AgentRecord struct {
	Address      string     `gorm:"primaryKey" json:"address"`
	Label        string     `json:"label"`
	Network      string     `json:"network" gorm:"index"`
	Owner        string     `json:"owner" gorm:"index"` // durable identity that approved the agent
	EnvPath      string     `json:"env_path"`
	Persisted    bool       `json:"persisted"`
	CreatedAt    time.Time  `json:"created_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}
