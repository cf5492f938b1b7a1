// Package catalog indexes decoded technologies in DuckDB so layers, arcs and
// nodes can be searched across every uploaded document.
package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/tech"
)

const (
	KindLayer = "layer"
	KindArc   = "arc"
	KindNode  = "node"
)

var tables = map[string]string{
	KindLayer: "layers",
	KindArc:   "arcs",
	KindNode:  "nodes",
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS technologies (
	file_id     VARCHAR PRIMARY KEY,
	name        VARCHAR NOT NULL,
	short_name  VARCHAR,
	description VARCHAR,
	scale       DOUBLE,
	max_metals  INTEGER
);
CREATE TABLE IF NOT EXISTS layers (
	file_id  VARCHAR NOT NULL,
	name     VARCHAR NOT NULL,
	function VARCHAR NOT NULL,
	extra    VARCHAR,
	cif      VARCHAR
);
CREATE TABLE IF NOT EXISTS arcs (
	file_id  VARCHAR NOT NULL,
	name     VARCHAR NOT NULL,
	function VARCHAR NOT NULL,
	layers   INTEGER
);
CREATE TABLE IF NOT EXISTS nodes (
	file_id  VARCHAR NOT NULL,
	name     VARCHAR NOT NULL,
	function VARCHAR NOT NULL,
	ports    INTEGER
);
`

// Query filters catalog lookups. Empty fields match everything.
type Query struct {
	// Name matches case-insensitively as a substring.
	Name     string
	Function string
	FileID   string
	Limit    int
}

// Catalog is a DuckDB-backed index of technology contents.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger

	// DuckDB appenders bypass transactions; writes are serialised here.
	writeMu sync.Mutex
}

// Open opens or creates the catalog database at dbPath. An empty path
// opens an in-memory database.
func Open(dbPath string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog tables: %w", err)
	}

	logger.Info("catalog opened", "path", dbPath)
	return &Catalog{db: db, logger: logger}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index replaces the catalog rows of fileID with the contents of t.
func (c *Catalog) Index(ctx context.Context, fileID string, t *tech.Technology) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.remove(ctx, fileID); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO technologies (file_id, name, short_name, description, scale, max_metals) VALUES (?, ?, ?, ?, ?, ?)`,
		fileID, t.Name, t.ShortName, t.Description, t.Scale, t.MaxMetals)
	if err != nil {
		return fmt.Errorf("failed to insert technology: %w", err)
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	layers := t.Layers()
	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		if err := appendRows(dConn, "layers", len(layers), func(i int) []driver.Value {
			l := layers[i]
			return []driver.Value{fileID, l.Name(), l.Function.String(), l.Extra.String(), l.CIF}
		}); err != nil {
			return err
		}
		if err := appendRows(dConn, "arcs", len(t.Arcs), func(i int) []driver.Value {
			a := t.Arcs[i]
			return []driver.Value{fileID, a.Name, a.Function.String(), int32(len(a.Layers))}
		}); err != nil {
			return err
		}
		return appendRows(dConn, "nodes", len(t.Nodes), func(i int) []driver.Value {
			n := t.Nodes[i]
			return []driver.Value{fileID, n.Name, n.Function.String(), int32(len(n.Ports))}
		})
	})
	if err != nil {
		if rerr := c.remove(ctx, fileID); rerr != nil {
			c.logger.Error("failed to roll back partial index", "fileId", fileID, "error", rerr)
		}
		return fmt.Errorf("appender error: %w", err)
	}

	c.logger.Debug("indexed technology", "fileId", fileID, "technology", t.Name,
		"layers", len(layers), "arcs", len(t.Arcs), "nodes", len(t.Nodes))
	return nil
}

func appendRows(conn *duckdb.Conn, table string, n int, row func(int) []driver.Value) error {
	if n == 0 {
		return nil
	}
	appender, err := duckdb.NewAppenderFromConn(conn, "", table)
	if err != nil {
		return fmt.Errorf("failed to create appender for %s: %w", table, err)
	}
	defer appender.Close()

	for i := 0; i < n; i++ {
		if err := appender.AppendRow(row(i)...); err != nil {
			return fmt.Errorf("failed to append %s row %d: %w", table, i, err)
		}
	}
	return appender.Flush()
}

// Remove drops every row belonging to fileID.
func (c *Catalog) Remove(ctx context.Context, fileID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.remove(ctx, fileID)
}

func (c *Catalog) remove(ctx context.Context, fileID string) error {
	for _, table := range []string{"technologies", "layers", "arcs", "nodes"} {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// FindLayers returns indexed layers matching q.
func (c *Catalog) FindLayers(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	return c.find(ctx, KindLayer, q)
}

// FindArcs returns indexed arc prototypes matching q.
func (c *Catalog) FindArcs(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	return c.find(ctx, KindArc, q)
}

// FindNodes returns indexed primitive nodes matching q.
func (c *Catalog) FindNodes(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	return c.find(ctx, KindNode, q)
}

// Find dispatches on kind ("layer", "arc" or "node").
func (c *Catalog) Find(ctx context.Context, kind string, q Query) ([]models.CatalogEntry, error) {
	if _, ok := tables[kind]; !ok {
		return nil, fmt.Errorf("unknown catalog kind %q", kind)
	}
	return c.find(ctx, kind, q)
}

func (c *Catalog) find(ctx context.Context, kind string, q Query) ([]models.CatalogEntry, error) {
	where, args := q.whereClause()
	query := fmt.Sprintf(`SELECT o.file_id, t.name, o.name, o.function
		FROM %s o JOIN technologies t ON t.file_id = o.file_id%s
		ORDER BY t.name, o.name`, tables[kind], where)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := []models.CatalogEntry{}
	for rows.Next() {
		e := models.CatalogEntry{Kind: kind}
		if err := rows.Scan(&e.FileID, &e.Technology, &e.Name, &e.Function); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q Query) whereClause() (string, []any) {
	var conditions []string
	var args []any

	if q.Name != "" {
		conditions = append(conditions, "o.name ILIKE ?")
		args = append(args, "%"+q.Name+"%")
	}
	if q.Function != "" {
		conditions = append(conditions, "o.function = ?")
		args = append(args, strings.ToUpper(q.Function))
	}
	if q.FileID != "" {
		conditions = append(conditions, "o.file_id = ?")
		args = append(args, q.FileID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Stats counts the indexed objects.
func (c *Catalog) Stats(ctx context.Context) (models.CatalogStats, error) {
	var s models.CatalogStats
	err := c.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM technologies),
		(SELECT COUNT(*) FROM layers),
		(SELECT COUNT(*) FROM arcs),
		(SELECT COUNT(*) FROM nodes)`).Scan(&s.Technologies, &s.Layers, &s.Arcs, &s.Nodes)
	if err != nil {
		return s, fmt.Errorf("stats query failed: %w", err)
	}
	return s, nil
}
