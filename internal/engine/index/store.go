// # internal/engine/index/store.go
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"microscope/internal/engine/resolver"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// Store persists a symbol index in SQLite so later runs can skip the parse
// phase. It answers Oracle queries straight from the database.
type Store struct {
	db         *sql.DB
	projectKey string
	typeStmt   *sql.Stmt
	funcStmt   *sql.Stmt

	cacheMu   sync.RWMutex
	typeCache map[string]*resolver.Symbol
	funcCache map[string]bool
}

func OpenStore(path, projectKey string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("symbol index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("symbol index path %q is a directory, expected file", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create symbol index directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open symbol index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping symbol index %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	typeStmt, err := db.Prepare(`SELECT name, kind, parent, interfaces, traits, methods, file_path, line_number
FROM symbols
WHERE project_key = ? AND is_function = 0 AND canonical_name = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare type stmt: %w", err)
	}
	funcStmt, err := db.Prepare(`SELECT COUNT(*) FROM symbols WHERE project_key = ? AND is_function = 1 AND canonical_name = ?`)
	if err != nil {
		_ = typeStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare function stmt: %w", err)
	}

	return &Store{
		db:         db,
		projectKey: key,
		typeStmt:   typeStmt,
		funcStmt:   funcStmt,
		typeCache:  make(map[string]*resolver.Symbol),
		funcCache:  make(map[string]bool),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_ = s.typeStmt.Close()
	_ = s.funcStmt.Close()
	return s.db.Close()
}

func (s *Store) clearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.typeCache = make(map[string]*resolver.Symbol)
	s.funcCache = make(map[string]bool)
}

// Sync replaces the stored symbols of this project with the contents of ix.
func (s *Store) Sync(ctx context.Context, ix *resolver.Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin symbol sync tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE project_key = ?`, s.projectKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear symbols: %w", err)
	}
	for _, sym := range ix.Symbols() {
		if err := insertSymbol(ctx, tx, s.projectKey, sym); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit symbol sync tx: %w", err)
	}
	s.clearCache()
	return nil
}

// UpsertFile replaces the symbols declared in path.
func (s *Store) UpsertFile(ctx context.Context, path string, syms []resolver.Symbol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin symbol upsert tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE project_key = ? AND file_path = ?`, s.projectKey, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete file symbols: %w", err)
	}
	for _, sym := range syms {
		sym.File = path
		if err := insertSymbol(ctx, tx, s.projectKey, sym); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit symbol upsert tx: %w", err)
	}
	s.clearCache()
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symbols WHERE project_key = ? AND file_path = ?`, s.projectKey, path); err != nil {
		return fmt.Errorf("delete file symbols: %w", err)
	}
	s.clearCache()
	return nil
}

func insertSymbol(ctx context.Context, tx *sql.Tx, projectKey string, sym resolver.Symbol) error {
	interfaces, _ := json.Marshal(nonNil(sym.Interfaces))
	traits, _ := json.Marshal(nonNil(sym.Traits))
	methods, _ := json.Marshal(nonNil(sym.Methods))

	isFunction := 0
	if !sym.Kind.IsType() {
		isFunction = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO symbols
  (project_key, canonical_name, name, kind, is_function, parent, interfaces, traits, methods, file_path, line_number)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectKey, resolver.Key(sym.Name), sym.Name, string(sym.Kind), isFunction,
		sym.Parent, string(interfaces), string(traits), string(methods), sym.File, sym.Line)
	if err != nil {
		return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Len returns the number of stored symbols for this project.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols WHERE project_key = ?`, s.projectKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("count symbols: %w", err)
	}
	return n, nil
}

// Load reads every stored symbol into a fresh in-memory Index.
func (s *Store) Load(ctx context.Context) (*resolver.Index, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, parent, interfaces, traits, methods, file_path, line_number
FROM symbols WHERE project_key = ?`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	defer rows.Close()

	ix := resolver.NewIndex()
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		ix.Add(sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	return ix, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbol(row rowScanner) (resolver.Symbol, error) {
	var (
		sym                         resolver.Symbol
		kind                        string
		interfaces, traits, methods string
	)
	if err := row.Scan(&sym.Name, &kind, &sym.Parent, &interfaces, &traits, &methods, &sym.File, &sym.Line); err != nil {
		return resolver.Symbol{}, err
	}
	sym.Kind = resolver.SymbolKind(kind)
	if err := json.Unmarshal([]byte(interfaces), &sym.Interfaces); err != nil {
		return resolver.Symbol{}, fmt.Errorf("decode interfaces of %s: %w", sym.Name, err)
	}
	if err := json.Unmarshal([]byte(traits), &sym.Traits); err != nil {
		return resolver.Symbol{}, fmt.Errorf("decode traits of %s: %w", sym.Name, err)
	}
	if err := json.Unmarshal([]byte(methods), &sym.Methods); err != nil {
		return resolver.Symbol{}, fmt.Errorf("decode methods of %s: %w", sym.Name, err)
	}
	return sym, nil
}

func (s *Store) lookupType(ctx context.Context, name string) (*resolver.Symbol, error) {
	key := resolver.Key(name)
	if key == "" {
		return nil, nil
	}

	s.cacheMu.RLock()
	if sym, ok := s.typeCache[key]; ok {
		s.cacheMu.RUnlock()
		return sym, nil
	}
	s.cacheMu.RUnlock()

	var found *resolver.Symbol
	sym, err := scanSymbol(s.typeStmt.QueryRowContext(ctx, s.projectKey, key))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	default:
		found = &sym
	}

	s.cacheMu.Lock()
	s.typeCache[key] = found
	s.cacheMu.Unlock()
	return found, nil
}

func (s *Store) Resolves(ctx context.Context, name string) (bool, error) {
	sym, err := s.lookupType(ctx, name)
	return sym != nil, err
}

func (s *Store) FunctionExists(ctx context.Context, name string) (bool, error) {
	key := resolver.Key(name)
	if key == "" {
		return false, nil
	}

	s.cacheMu.RLock()
	if ok, cached := s.funcCache[key]; cached {
		s.cacheMu.RUnlock()
		return ok, nil
	}
	s.cacheMu.RUnlock()

	var n int
	if err := s.funcStmt.QueryRowContext(ctx, s.projectKey, key).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup function %s: %w", name, err)
	}

	s.cacheMu.Lock()
	s.funcCache[key] = n > 0
	s.cacheMu.Unlock()
	return n > 0, nil
}

// MethodExists walks the stored inheritance graph the same way Index does.
func (s *Store) MethodExists(ctx context.Context, class, method string) (bool, error) {
	want := resolver.Key(method)
	seen := make(map[string]bool)
	queue := []string{class}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		key := resolver.Key(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		sym, err := s.lookupType(ctx, name)
		if err != nil {
			return false, err
		}
		if sym == nil {
			continue
		}
		for _, m := range sym.Methods {
			if resolver.Key(m) == want {
				return true, nil
			}
		}
		queue = append(queue, sym.Parent)
		queue = append(queue, sym.Traits...)
		queue = append(queue, sym.Interfaces...)
	}
	return false, nil
}
