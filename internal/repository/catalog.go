package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medscan-resolver/internal/domain"
)

// CatalogRepository stores the drug knowledge base and safety-limit table in Postgres.
// It implements domain.CatalogSource.
type CatalogRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *pgxpool.Pool, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: logger,
	}
}

// Name implements domain.CatalogSource
func (r *CatalogRepository) Name() string {
	return "postgres"
}

// LoadDrugs returns every drug in catalog order
func (r *CatalogRepository) LoadDrugs(ctx context.Context) ([]domain.DrugRecord, error) {
	query := `
		SELECT name, brand, dosages, usage, dietary_plan, home_remedies, restrictions
		FROM drugs
		ORDER BY position, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying drugs: %w", err)
	}
	defer rows.Close()

	var drugs []domain.DrugRecord
	for rows.Next() {
		var rec domain.DrugRecord
		if err := rows.Scan(
			&rec.Name,
			&rec.Brand,
			&rec.Dosages,
			&rec.Usage,
			&rec.DietaryPlan,
			&rec.HomeRemedies,
			&rec.Restrictions,
		); err != nil {
			return nil, fmt.Errorf("scanning drug: %w", err)
		}
		drugs = append(drugs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drugs: %w", err)
	}

	r.log.WithField("count", len(drugs)).Debug("Loaded drugs from database")
	return drugs, nil
}

// LoadSafetyLimits returns the safety-limit table keyed by alias
func (r *CatalogRepository) LoadSafetyLimits(ctx context.Context) (map[string]domain.SafetyLimit, error) {
	query := `
		SELECT alias, max_single_dose_mg, max_daily_dose_mg, typical_unit
		FROM safety_limits`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying safety limits: %w", err)
	}
	defer rows.Close()

	limits := make(map[string]domain.SafetyLimit)
	for rows.Next() {
		var alias string
		var limit domain.SafetyLimit
		if err := rows.Scan(&alias, &limit.MaxSingleDoseMg, &limit.MaxDailyDoseMg, &limit.TypicalUnit); err != nil {
			return nil, fmt.Errorf("scanning safety limit: %w", err)
		}
		limits[alias] = limit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating safety limits: %w", err)
	}

	return limits, nil
}

// UpsertDrug inserts or replaces one drug at the given catalog position
func (r *CatalogRepository) UpsertDrug(ctx context.Context, position int, rec domain.DrugRecord) error {
	query := `
		INSERT INTO drugs (position, name, brand, dosages, usage, dietary_plan, home_remedies, restrictions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			position = EXCLUDED.position,
			brand = EXCLUDED.brand,
			dosages = EXCLUDED.dosages,
			usage = EXCLUDED.usage,
			dietary_plan = EXCLUDED.dietary_plan,
			home_remedies = EXCLUDED.home_remedies,
			restrictions = EXCLUDED.restrictions,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query, drugArgs(position, rec)...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"drug":  rec.Name,
			"error": err,
		}).Error("Failed to upsert drug")
		return fmt.Errorf("upserting drug: %w", err)
	}
	return nil
}

// Seed replaces the stored catalog with drugs and limits in one transaction
func (r *CatalogRepository) Seed(ctx context.Context, drugs []domain.DrugRecord, limits map[string]domain.SafetyLimit) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM drugs"); err != nil {
			return fmt.Errorf("clearing drugs: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM safety_limits"); err != nil {
			return fmt.Errorf("clearing safety limits: %w", err)
		}

		batch := &pgx.Batch{}
		for i, rec := range drugs {
			batch.Queue(`
				INSERT INTO drugs (position, name, brand, dosages, usage, dietary_plan, home_remedies, restrictions)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, drugArgs(i, rec)...)
		}

		aliases := make([]string, 0, len(limits))
		for alias := range limits {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			limit := limits[alias]
			batch.Queue(`
				INSERT INTO safety_limits (alias, max_single_dose_mg, max_daily_dose_mg, typical_unit)
				VALUES ($1, $2, $3, $4)`,
				alias, limit.MaxSingleDoseMg, limit.MaxDailyDoseMg, limit.TypicalUnit)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}

		r.log.WithFields(logrus.Fields{
			"drugs":         len(drugs),
			"safety_limits": len(limits),
		}).Info("Catalog seeded")
		return nil
	})
}

func drugArgs(position int, rec domain.DrugRecord) []any {
	dosages := rec.Dosages
	if dosages == nil {
		dosages = []string{}
	}
	return []any{
		position,
		rec.Name,
		rec.Brand,
		dosages,
		rec.Usage,
		rec.DietaryPlan,
		rec.HomeRemedies,
		rec.Restrictions,
	}
}
