package storage

import (
	"time"

	"gorm.io/datatypes"
)

// ProgramRow persists one graph.Snapshot as a single JSON document,
// keyed by program name. A program's compute/semantic layers are
// always loaded and saved together (spec.md's Program Graph has no
// partial-load story — a mutation batch touches the whole graph's
// invariants, not one table row), so one row per program, not one row
// per node, mirrors models.go's flat-row style at the grain that
// actually matters here: the program, not the node.
type ProgramRow struct {
	Name      string `gorm:"primaryKey;type:varchar(255)"`
	Snapshot  datatypes.JSON
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ProgramRow) TableName() string { return "programs" }

// EditLogEntryRow is one durable mutation-batch record.
type EditLogEntryRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProgramName string `gorm:"type:varchar(255);index"`
	Idx         int
	Agent       string `gorm:"type:varchar(100)"`
	Timestamp   time.Time
	Description string
	PreHashes   datatypes.JSON
	PostHashes  datatypes.JSON
}

func (EditLogEntryRow) TableName() string { return "edit_log_entries" }

// CheckpointRow names a log index within one program's edit log.
type CheckpointRow struct {
	ProgramName string `gorm:"primaryKey;type:varchar(255)"`
	Name        string `gorm:"primaryKey;type:varchar(255)"`
	LogIndex    int
}

func (CheckpointRow) TableName() string { return "checkpoints" }

// AgentConfigRow persists one agent's identity/configuration.
type AgentConfigRow struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	DisplayName string `gorm:"type:varchar(255)"`
	Settings    datatypes.JSON
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (AgentConfigRow) TableName() string { return "agent_configs" }
