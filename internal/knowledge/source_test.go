package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medscan-resolver/internal/domain"
)

func TestLoad_EmbeddedSeedData(t *testing.T) {
	kb, err := Load(context.Background(), NewEmbeddedSource())
	require.NoError(t, err)

	assert.Equal(t, "embedded", kb.Catalog.Source())
	assert.GreaterOrEqual(t, kb.Catalog.Len(), 10)

	for _, target := range []string{"Calpol", "Dolo", "Meftal-P", "Amoxicillin", "Lipitor", "Ibuprofen"} {
		_, ok := kb.Catalog.FindByTarget(target)
		assert.True(t, ok, "expected %s in seed catalog", target)
	}

	limit, ok := kb.Safety.Lookup("Paracetamol")
	require.True(t, ok)
	assert.Equal(t, 1000.0, limit.MaxSingleDoseMg)
	assert.Equal(t, 4000.0, limit.MaxDailyDoseMg)

	limit, ok = kb.Safety.Lookup("atorvastatin")
	require.True(t, ok)
	assert.Equal(t, 80.0, limit.MaxSingleDoseMg)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	limits := writeFile(t, dir, "limits.yaml",
		"limits:\n  - aliases: [ibuprofen]\n    max_single_dose_mg: 800\n    max_daily_dose_mg: 3200\n")

	tests := []struct {
		name  string
		file  string
		drugs string
	}{
		{"json", "drugs.json", `[{"name":"Ibuprofen","brand":"Advil","dosages":["200mg"]}]`},
		{"yaml", "drugs.yml", "- name: Ibuprofen\n  brand: Advil\n  dosages: [200mg]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drugs := writeFile(t, dir, tt.file, tt.drugs)

			kb, err := Load(context.Background(), NewFileSource(drugs, limits))
			require.NoError(t, err)

			rec, ok := kb.Catalog.FindByTarget("advil")
			require.True(t, ok)
			assert.Equal(t, "Ibuprofen", rec.Name)
			assert.Equal(t, []string{"200mg"}, rec.Dosages)
		})
	}
}

func TestFileSource_DefaultsToBuiltInSafetyTable(t *testing.T) {
	drugs := writeFile(t, t.TempDir(), "drugs.json", `[{"name":"Ibuprofen","brand":"Advil"}]`)

	kb, err := Load(context.Background(), NewFileSource(drugs, ""))
	require.NoError(t, err)

	limit, ok := kb.Safety.Lookup("Paracetamol")
	require.True(t, ok)
	assert.Equal(t, 1000.0, limit.MaxSingleDoseMg)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), NewFileSource("/nonexistent/drugs.json", "/nonexistent/limits.yaml"))
	assert.Error(t, err)
}

func TestFileSource_MalformedDrugs(t *testing.T) {
	dir := t.TempDir()
	drugs := writeFile(t, dir, "drugs.json", `{"name": "not an array"}`)
	limits := writeFile(t, dir, "limits.yaml", "limits: []\n")

	_, err := Load(context.Background(), NewFileSource(drugs, limits))
	var catalogErr *domain.CatalogError
	assert.True(t, errors.As(err, &catalogErr))
}

func TestSQLiteSource_SeedAndLoad(t *testing.T) {
	ctx := context.Background()
	seed, err := Load(ctx, NewEmbeddedSource())
	require.NoError(t, err)

	limits, err := NewEmbeddedSource().LoadSafetyLimits(ctx)
	require.NoError(t, err)

	source, err := OpenSQLiteSource(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer source.Close()

	require.NoError(t, source.Seed(ctx, seed.Catalog.Records(), limits))

	kb, err := Load(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, seed.Catalog.Targets(), kb.Catalog.Targets())
	assert.Equal(t, seed.Safety.Len(), kb.Safety.Len())

	rec, ok := kb.Catalog.FindByTarget("Calpol")
	require.True(t, ok)
	assert.Contains(t, rec.Dosages, "500mg")
}

func TestSQLSource_LoadDrugsWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "brand", "dosages", "usage", "dietary_plan", "home_remedies", "restrictions"}).
		AddRow("Azithromycin", "Zithromax", `["250mg","500mg"]`, "Infections", "", "", "").
		AddRow("Cetirizine", "", `[]`, "Allergy", "", "", "May cause drowsiness")
	mock.ExpectQuery("SELECT name, brand, dosages").WillReturnRows(rows)

	drugs, err := NewSQLSource(db, "mock").LoadDrugs(context.Background())
	require.NoError(t, err)
	require.Len(t, drugs, 2)
	assert.Equal(t, []string{"250mg", "500mg"}, drugs[0].Dosages)
	assert.Equal(t, "May cause drowsiness", drugs[1].Restrictions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_BadDosagesColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "brand", "dosages", "usage", "dietary_plan", "home_remedies", "restrictions"}).
		AddRow("Azithromycin", "Zithromax", `not-json`, "", "", "", "")
	mock.ExpectQuery("SELECT name, brand, dosages").WillReturnRows(rows)

	_, err = NewSQLSource(db, "mock").LoadDrugs(context.Background())
	var catalogErr *domain.CatalogError
	require.True(t, errors.As(err, &catalogErr))
	assert.Equal(t, "Azithromycin", catalogErr.Entry)
}

func TestSQLSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT alias, max_single_dose_mg").WillReturnError(errors.New("connection reset"))

	_, err = NewSQLSource(db, "mock").LoadSafetyLimits(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestNewSource(t *testing.T) {
	source, err := NewSource(domain.CatalogConfig{Source: domain.CatalogSourceEmbedded})
	require.NoError(t, err)
	assert.Equal(t, "embedded", source.Name())

	_, err = NewSource(domain.CatalogConfig{Source: domain.CatalogSourceFile})
	assert.Error(t, err)

	_, err = NewSource(domain.CatalogConfig{Source: "mongodb"})
	assert.Error(t, err)
}
