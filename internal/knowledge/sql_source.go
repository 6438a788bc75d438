package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/medscan-resolver/internal/domain"
)

// SQLSource loads the catalog from a SQL database through database/sql.
// The schema is created by OpenSQLiteSource; dosages are stored as a JSON array.
type SQLSource struct {
	db   *sql.DB
	name string
}

// NewSQLSource wraps an already opened database
func NewSQLSource(db *sql.DB, name string) *SQLSource {
	return &SQLSource{db: db, name: name}
}

// OpenSQLiteSource opens (creating if needed) a SQLite catalog file
func OpenSQLiteSource(dbPath string) (*SQLSource, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite catalog source requires sqlite_path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return NewSQLSource(db, "sqlite:"+dbPath), nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drugs (
		position INTEGER NOT NULL,
		name TEXT PRIMARY KEY,
		brand TEXT NOT NULL DEFAULT '',
		dosages TEXT NOT NULL DEFAULT '[]',
		usage TEXT NOT NULL DEFAULT '',
		dietary_plan TEXT NOT NULL DEFAULT '',
		home_remedies TEXT NOT NULL DEFAULT '',
		restrictions TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS safety_limits (
		alias TEXT PRIMARY KEY,
		max_single_dose_mg REAL NOT NULL,
		max_daily_dose_mg REAL NOT NULL,
		typical_unit TEXT NOT NULL DEFAULT 'mg'
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Name implements domain.CatalogSource
func (s *SQLSource) Name() string {
	return s.name
}

// LoadDrugs implements domain.CatalogSource
func (s *SQLSource) LoadDrugs(ctx context.Context) ([]domain.DrugRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, brand, dosages, usage, dietary_plan, home_remedies, restrictions
		 FROM drugs ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drugs: %w", err)
	}
	defer rows.Close()

	var drugs []domain.DrugRecord
	for rows.Next() {
		var rec domain.DrugRecord
		var dosages string
		if err := rows.Scan(&rec.Name, &rec.Brand, &dosages, &rec.Usage,
			&rec.DietaryPlan, &rec.HomeRemedies, &rec.Restrictions); err != nil {
			return nil, fmt.Errorf("failed to scan drug: %w", err)
		}
		if err := json.Unmarshal([]byte(dosages), &rec.Dosages); err != nil {
			return nil, domain.NewCatalogError(s.name, rec.Name, fmt.Sprintf("dosages: %v", err))
		}
		drugs = append(drugs, rec)
	}
	return drugs, rows.Err()
}

// LoadSafetyLimits implements domain.CatalogSource
func (s *SQLSource) LoadSafetyLimits(ctx context.Context) (map[string]domain.SafetyLimit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias, max_single_dose_mg, max_daily_dose_mg, typical_unit FROM safety_limits`)
	if err != nil {
		return nil, fmt.Errorf("failed to query safety limits: %w", err)
	}
	defer rows.Close()

	limits := make(map[string]domain.SafetyLimit)
	for rows.Next() {
		var alias string
		var limit domain.SafetyLimit
		if err := rows.Scan(&alias, &limit.MaxSingleDoseMg, &limit.MaxDailyDoseMg, &limit.TypicalUnit); err != nil {
			return nil, fmt.Errorf("failed to scan safety limit: %w", err)
		}
		limits[alias] = limit
	}
	return limits, rows.Err()
}

// Seed replaces the stored catalog with drugs and limits in one transaction
func (s *SQLSource) Seed(ctx context.Context, drugs []domain.DrugRecord, limits map[string]domain.SafetyLimit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM drugs"); err != nil {
		return fmt.Errorf("failed to clear drugs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM safety_limits"); err != nil {
		return fmt.Errorf("failed to clear safety limits: %w", err)
	}

	for i, rec := range drugs {
		dosages, err := json.Marshal(rec.Dosages)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drugs (position, name, brand, dosages, usage, dietary_plan, home_remedies, restrictions)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, rec.Name, rec.Brand, string(dosages), rec.Usage, rec.DietaryPlan, rec.HomeRemedies, rec.Restrictions,
		); err != nil {
			return fmt.Errorf("failed to insert drug %q: %w", rec.Name, err)
		}
	}

	aliases := make([]string, 0, len(limits))
	for alias := range limits {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		limit := limits[alias]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO safety_limits (alias, max_single_dose_mg, max_daily_dose_mg, typical_unit) VALUES (?, ?, ?, ?)`,
			alias, limit.MaxSingleDoseMg, limit.MaxDailyDoseMg, limit.TypicalUnit,
		); err != nil {
			return fmt.Errorf("failed to insert safety limit %q: %w", alias, err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database
func (s *SQLSource) Close() error {
	return s.db.Close()
}
