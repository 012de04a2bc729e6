// Package catalog stores decoded type-hint attributes in SQLite so later
// stages can query hints by class, member and offset without reparsing
// class files.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/typehints/attr"
	"github.com/chazu/typehints/hint"
)

var log = commonlog.GetLogger("typehints.catalog")

// ErrRunNotFound indicates the requested ingest run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Scope names the kind of declaration an attribute belongs to.
type Scope string

const (
	ScopeClass  Scope = "class"
	ScopeField  Scope = "field"
	ScopeMethod Scope = "method"
)

// Location identifies the declaration carrying an attribute. Member and
// Desc are empty for class attributes.
type Location struct {
	Class  string
	Scope  Scope
	Member string
	Desc   string
}

func (l Location) String() string {
	if l.Scope == ScopeClass {
		return l.Class
	}
	return l.Class + "." + l.Member + l.Desc
}

// Run is one ingest session.
type Run struct {
	ID      string
	Source  string
	Started time.Time
}

// Stored is an attribute as kept in the catalog.
type Stored struct {
	Run      string
	Location Location
	Name     string
	Raw      []byte
}

// Decode parses the stored payload.
func (s Stored) Decode() (attr.Decoder, error) {
	return attr.Decode(s.Name, s.Raw)
}

// Hint is one offset-keyed hint exploded from an InvokeReturnType or
// InstructionTypeArguments attribute. Position is the operand position for
// argument hints and 0 for slot hints.
type Hint struct {
	Location  Location
	Attribute string
	Offset    uint16
	Position  int
	Kind      byte
	Outer     uint16
	Index     uint16
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS attributes (
	run TEXT NOT NULL REFERENCES runs(id),
	class TEXT NOT NULL,
	scope TEXT NOT NULL,
	member TEXT NOT NULL,
	descriptor TEXT NOT NULL,
	name TEXT NOT NULL,
	raw BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS hints (
	run TEXT NOT NULL REFERENCES runs(id),
	class TEXT NOT NULL,
	member TEXT NOT NULL,
	descriptor TEXT NOT NULL,
	attribute TEXT NOT NULL,
	pc INTEGER NOT NULL,
	position INTEGER NOT NULL,
	kind INTEGER NOT NULL,
	outer_idx INTEGER NOT NULL,
	idx INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS hints_by_method ON hints (class, member, descriptor, pc);
`

// Catalog is a SQLite-backed hint store.
type Catalog struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the catalog at path. Use ":memory:" for a
// throwaway catalog.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	log.Debugf("opened catalog %s", path)
	return &Catalog{db: db, path: path}, nil
}

// Path returns the database path the catalog was opened with.
func (c *Catalog) Path() string { return c.path }

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// BeginRun registers a new ingest run.
func (c *Catalog) BeginRun(ctx context.Context, source string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &Run{ID: uuid.NewString(), Source: source, Started: time.Now().UTC().Truncate(time.Second)}
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO runs (id, source, started) VALUES (?, ?, ?)",
		r.ID, r.Source, r.Started.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	log.Debugf("run %s: %s", r.ID, source)
	return r, nil
}

// Run returns a previously registered run.
func (c *Catalog) Run(ctx context.Context, id string) (*Run, error) {
	var r Run
	var started string
	err := c.db.QueryRowContext(ctx, "SELECT id, source, started FROM runs WHERE id = ?", id).
		Scan(&r.ID, &r.Source, &started)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if r.Started, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return &r, nil
}

// Record stores one attribute for a run. Offset-keyed hint attributes are
// also exploded into individual hints.
func (c *Catalog) Record(ctx context.Context, run string, loc Location, a attr.Attribute) error {
	raw, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%s %s: %w", loc, a.Name(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO attributes (run, class, scope, member, descriptor, name, raw) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run, loc.Class, string(loc.Scope), loc.Member, loc.Desc, a.Name(), raw)
	if err != nil {
		return fmt.Errorf("saving attribute: %w", err)
	}

	for _, h := range explode(loc, a) {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO hints (run, class, member, descriptor, attribute, pc, position, kind, outer_idx, idx) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			run, loc.Class, loc.Member, loc.Desc, h.Attribute, h.Offset, h.Position, h.Kind, h.Outer, h.Index)
		if err != nil {
			return fmt.Errorf("saving hint: %w", err)
		}
	}
	return tx.Commit()
}

func explode(loc Location, a attr.Attribute) []Hint {
	var out []Hint
	switch v := a.(type) {
	case attr.InvokeReturnType:
		out = slotHints(loc, v.Name(), v.Hints)
	case *attr.InvokeReturnType:
		out = slotHints(loc, v.Name(), v.Hints)
	case attr.InstructionTypeArguments:
		out = argHints(loc, v.Name(), v.Hints)
	case *attr.InstructionTypeArguments:
		out = argHints(loc, v.Name(), v.Hints)
	}
	return out
}

func slotHints(loc Location, name string, hs []hint.SlotHint) []Hint {
	out := make([]Hint, 0, len(hs))
	for _, h := range hs {
		out = append(out, Hint{
			Location: loc, Attribute: name, Offset: h.Offset,
			Kind: byte(h.Type.Kind), Outer: h.Type.Outer, Index: h.Type.Index,
		})
	}
	return out
}

func argHints(loc Location, name string, hs []hint.ArgHint) []Hint {
	var out []Hint
	for _, h := range hs {
		for i, t := range h.Types {
			out = append(out, Hint{
				Location: loc, Attribute: name, Offset: h.Offset, Position: i,
				Kind: byte(t.Kind), Index: t.Index,
			})
		}
	}
	return out
}

// Attributes returns the attributes recorded for class in a run, in
// insertion order.
func (c *Catalog) Attributes(ctx context.Context, run, class string) ([]Stored, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT run, class, scope, member, descriptor, name, raw FROM attributes WHERE run = ? AND class = ? ORDER BY rowid",
		run, class)
	if err != nil {
		return nil, fmt.Errorf("querying attributes: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var s Stored
		var scope string
		if err := rows.Scan(&s.Run, &s.Location.Class, &scope, &s.Location.Member, &s.Location.Desc, &s.Name, &s.Raw); err != nil {
			return nil, fmt.Errorf("reading attribute: %w", err)
		}
		s.Location.Scope = Scope(scope)
		out = append(out, s)
	}
	return out, rows.Err()
}

// HintsAt returns the hints recorded for the instruction at offset in the
// given method, ordered by attribute and operand position.
func (c *Catalog) HintsAt(ctx context.Context, run, class, member, desc string, offset uint16) ([]Hint, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT attribute, position, kind, outer_idx, idx FROM hints
		WHERE run = ? AND class = ? AND member = ? AND descriptor = ? AND pc = ?
		ORDER BY attribute, position`,
		run, class, member, desc, offset)
	if err != nil {
		return nil, fmt.Errorf("querying hints: %w", err)
	}
	defer rows.Close()

	loc := Location{Class: class, Scope: ScopeMethod, Member: member, Desc: desc}
	var out []Hint
	for rows.Next() {
		h := Hint{Location: loc, Offset: offset}
		if err := rows.Scan(&h.Attribute, &h.Position, &h.Kind, &h.Outer, &h.Index); err != nil {
			return nil, fmt.Errorf("reading hint: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CountHints returns how many hints a run recorded.
func (c *Catalog) CountHints(ctx context.Context, run string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hints WHERE run = ?", run).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting hints: %w", err)
	}
	return n, nil
}
