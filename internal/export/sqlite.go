package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store persists analysis runs to SQLite for querying across runs.
type Store struct {
	db *sql.DB
	q  Querier
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemoryStore opens an in-memory database (for testing).
func OpenMemoryStore() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &Store{db: db}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		complexity INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		properties TEXT
	);

	CREATE TABLE IF NOT EXISTS links (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		error_flow INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES nodes(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS findings (
		node_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		suggestion TEXT NOT NULL,
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file);
	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);
	CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTransaction runs fn in one transaction-scoped Store.
func (s *Store) withTransaction(fn func(tx *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Save replaces the stored graph with the given one.
func (s *Store) Save(g *graph.Graph) error {
	return s.withTransaction(func(tx *Store) error {
		for _, table := range []string{"findings", "links", "nodes"} {
			if _, err := tx.q.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := tx.insertNodes(g.Nodes()); err != nil {
			return err
		}
		if err := tx.insertLinks(g.Edges); err != nil {
			return err
		}
		return tx.insertFindings(g.Bottlenecks)
	})
}

func (s *Store) insertNodes(nodes []*graph.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO nodes (id, name, kind, file, line, complexity, latency_ms, properties) VALUES ")
	args := make([]any, 0, len(nodes)*8)
	for i, n := range nodes {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		props, err := json.Marshal(map[string]any{
			"inputs":  n.Inputs,
			"outputs": n.Outputs,
			"errors":  n.Errors,
		})
		if err != nil {
			return fmt.Errorf("marshal node props: %w", err)
		}
		args = append(args, n.ID, n.Name, string(n.Kind), n.File, n.Line,
			n.Performance.Complexity, n.Performance.EstimatedLatencyMs, string(props))
	}
	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}
	return nil
}

func (s *Store) insertLinks(edges []*graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO links (source_id, target_id, kind, error_flow) VALUES ")
	args := make([]any, 0, len(edges)*4)
	for i, e := range edges {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?)")
		errorFlow := 0
		if e.ErrorFlow {
			errorFlow = 1
		}
		args = append(args, e.From, e.To, string(e.Kind), errorFlow)
	}
	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert links: %w", err)
	}
	return nil
}

func (s *Store) insertFindings(findings []*graph.Bottleneck) error {
	if len(findings) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO findings (node_id, kind, severity, suggestion) VALUES ")
	args := make([]any, 0, len(findings)*4)
	for i, f := range findings {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?)")
		args = append(args, f.NodeID, string(f.Kind), string(f.Severity), f.Suggestion)
	}
	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert findings: %w", err)
	}
	return nil
}

// NodeCount reports stored nodes, used by smoke checks after a save.
func (s *Store) NodeCount() (int, error) {
	var n int
	if err := s.q.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}
