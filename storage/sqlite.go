package storage

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sqlite "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snowdamiz/lmlang/compile"
	"github.com/snowdamiz/lmlang/graph"
)

// SQLiteStore is the persistent GraphStore backend: gorm over
// glebarez/sqlite (pure-Go, no cgo) for a local file, or over
// tursodatabase/libsql-client-go when dsn names a remote libsql/Turso
// URL — the exact dialector-selection shape of db/sqlite.go's Connect,
// adapted from the teacher's Stage/Apply/Session schema to lmlang's
// program/edit-log/checkpoint/agent-config schema.
type SQLiteStore struct {
	db *gorm.DB
}

// Open establishes a connection and migrates the schema. dsn is either
// a local sqlite file path or a libsql(s)://.../http(s):// remote URL;
// MORFX-style auth-token plumbing is replaced by LMLANG_LIBSQL_AUTH_TOKEN.
func Open(dsn string, debug bool) (*SQLiteStore, error) {
	if !isRemoteURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: create database directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isRemoteURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		token := os.Getenv("LMLANG_LIBSQL_AUTH_TOKEN")
		if token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("storage: create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.Dialector{DriverName: "libsql", Conn: conn, DSN: dsn}
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	if err := db.AutoMigrate(&ProgramRow{}, &EditLogEntryRow{}, &CheckpointRow{}, &AgentConfigRow{}); err != nil {
		return nil, &Error{Kind: CorruptState, Subject: dsn, Cause: err}
	}

	return &SQLiteStore{db: db}, nil
}

func isRemoteURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "libsqls://")
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) SaveProgram(p *graph.Program) error {
	raw, err := json.Marshal(p.Snapshot())
	if err != nil {
		return &Error{Kind: CorruptState, Subject: p.Name, Cause: err}
	}
	row := ProgramRow{Name: p.Name, Snapshot: datatypes.JSON(raw)}
	if err := s.db.Save(&row).Error; err != nil {
		return &Error{Kind: TransactionAborted, Subject: p.Name, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) loadSnapshot(name string) (graph.Snapshot, error) {
	var row ProgramRow
	if err := s.db.First(&row, "name = ?", name).Error; err != nil {
		return graph.Snapshot{}, &Error{Kind: NotFound, Subject: name, Cause: err}
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
		return graph.Snapshot{}, &Error{Kind: CorruptState, Subject: name, Cause: err}
	}
	return snap, nil
}

func (s *SQLiteStore) LoadProgram(name string) (*graph.Program, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return graph.FromSnapshot(snap), nil
}

func (s *SQLiteStore) ListPrograms() ([]string, error) {
	var rows []ProgramRow
	if err := s.db.Select("name").Find(&rows).Error; err != nil {
		return nil, &Error{Kind: TransactionAborted, Subject: "list programs", Cause: err}
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	sort.Strings(out)
	return out, nil
}

func (s *SQLiteStore) DeleteProgram(name string) error {
	res := s.db.Delete(&ProgramRow{}, "name = ?", name)
	if res.Error != nil {
		return &Error{Kind: TransactionAborted, Subject: name, Cause: res.Error}
	}
	if res.RowsAffected == 0 {
		return &Error{Kind: NotFound, Subject: name}
	}
	s.db.Delete(&EditLogEntryRow{}, "program_name = ?", name)
	s.db.Delete(&CheckpointRow{}, "program_name = ?", name)
	return nil
}

func (s *SQLiteStore) Modules(name string) ([]graph.ModuleRow, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Modules, nil
}

func (s *SQLiteStore) Functions(name string) ([]graph.FunctionRow, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Functions, nil
}

func (s *SQLiteStore) Nodes(name string) ([]graph.NodeRow, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.Nodes, nil
}

func (s *SQLiteStore) DataEdges(name string) ([]graph.DataEdgeRow, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.DataEdges, nil
}

func (s *SQLiteStore) CtrlEdges(name string) ([]graph.CtrlEdgeRow, error) {
	snap, err := s.loadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap.CtrlEdges, nil
}

func (s *SQLiteStore) AppendEditLogEntry(program string, entry EditLogEntry) error {
	pre, err := marshalHashes(entry.PreHashes)
	if err != nil {
		return &Error{Kind: CorruptState, Subject: program, Cause: err}
	}
	post, err := marshalHashes(entry.PostHashes)
	if err != nil {
		return &Error{Kind: CorruptState, Subject: program, Cause: err}
	}
	row := EditLogEntryRow{
		ProgramName: program,
		Idx:         entry.Index,
		Agent:       entry.Agent,
		Timestamp:   entry.Timestamp,
		Description: entry.Description,
		PreHashes:   datatypes.JSON(pre),
		PostHashes:  datatypes.JSON(post),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return &Error{Kind: TransactionAborted, Subject: program, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) ListEditLog(program string) ([]EditLogEntry, error) {
	var rows []EditLogEntryRow
	if err := s.db.Where("program_name = ?", program).Order("idx asc").Find(&rows).Error; err != nil {
		return nil, &Error{Kind: TransactionAborted, Subject: program, Cause: err}
	}
	out := make([]EditLogEntry, len(rows))
	for i, r := range rows {
		pre, err := unmarshalHashes(r.PreHashes)
		if err != nil {
			return nil, &Error{Kind: CorruptState, Subject: program, Cause: err}
		}
		post, err := unmarshalHashes(r.PostHashes)
		if err != nil {
			return nil, &Error{Kind: CorruptState, Subject: program, Cause: err}
		}
		out[i] = EditLogEntry{
			Index: r.Idx, Agent: r.Agent, Timestamp: r.Timestamp,
			Description: r.Description, PreHashes: pre, PostHashes: post,
		}
	}
	return out, nil
}

func (s *SQLiteStore) SaveCheckpoint(program, checkpoint string, logIndex int) error {
	row := CheckpointRow{ProgramName: program, Name: checkpoint, LogIndex: logIndex}
	if err := s.db.Save(&row).Error; err != nil {
		return &Error{Kind: TransactionAborted, Subject: program, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) ListCheckpoints(program string) (map[string]int, error) {
	var rows []CheckpointRow
	if err := s.db.Where("program_name = ?", program).Find(&rows).Error; err != nil {
		return nil, &Error{Kind: TransactionAborted, Subject: program, Cause: err}
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Name] = r.LogIndex
	}
	return out, nil
}

func (s *SQLiteStore) SaveAgentConfig(cfg AgentConfig) error {
	raw, err := json.Marshal(cfg.Settings)
	if err != nil {
		return &Error{Kind: CorruptState, Subject: cfg.ID, Cause: err}
	}
	row := AgentConfigRow{ID: cfg.ID, DisplayName: cfg.DisplayName, Settings: datatypes.JSON(raw), CreatedAt: cfg.CreatedAt}
	if err := s.db.Save(&row).Error; err != nil {
		return &Error{Kind: TransactionAborted, Subject: cfg.ID, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) LoadAgentConfig(id string) (AgentConfig, error) {
	var row AgentConfigRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return AgentConfig{}, &Error{Kind: NotFound, Subject: id, Cause: err}
	}
	return agentConfigFromRow(row)
}

func (s *SQLiteStore) ListAgentConfigs() ([]AgentConfig, error) {
	var rows []AgentConfigRow
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, &Error{Kind: TransactionAborted, Subject: "list agents", Cause: err}
	}
	out := make([]AgentConfig, 0, len(rows))
	for _, r := range rows {
		cfg, err := agentConfigFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteAgentConfig(id string) error {
	res := s.db.Delete(&AgentConfigRow{}, "id = ?", id)
	if res.Error != nil {
		return &Error{Kind: TransactionAborted, Subject: id, Cause: res.Error}
	}
	if res.RowsAffected == 0 {
		return &Error{Kind: NotFound, Subject: id}
	}
	return nil
}

func agentConfigFromRow(row AgentConfigRow) (AgentConfig, error) {
	var settings map[string]string
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &settings); err != nil {
			return AgentConfig{}, &Error{Kind: CorruptState, Subject: row.ID, Cause: err}
		}
	}
	return AgentConfig{ID: row.ID, DisplayName: row.DisplayName, Settings: settings, CreatedAt: row.CreatedAt}, nil
}

func marshalHashes(m map[graph.FunctionId]compile.Hash) ([]byte, error) {
	return json.Marshal(m)
}

func unmarshalHashes(raw datatypes.JSON) (map[graph.FunctionId]compile.Hash, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[graph.FunctionId]compile.Hash
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var _ GraphStore = (*SQLiteStore)(nil)
