package knowledge

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medscan-resolver/internal/domain"
)

//go:embed data/drugs.json data/safety_limits.yaml
var seedData embed.FS

const (
	embeddedDrugsPath  = "data/drugs.json"
	embeddedLimitsPath = "data/safety_limits.yaml"
)

// KnowledgeBase bundles the catalog and the safety table loaded from one source
type KnowledgeBase struct {
	Catalog *Catalog
	Safety  *SafetyTable
}

// Load reads drugs and safety limits from source and validates both.
// Any error is fatal to startup.
func Load(ctx context.Context, source domain.CatalogSource) (*KnowledgeBase, error) {
	drugs, err := source.LoadDrugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load drugs from %s: %w", source.Name(), err)
	}
	catalog, err := NewCatalog(source.Name(), drugs)
	if err != nil {
		return nil, err
	}

	limits, err := source.LoadSafetyLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load safety limits from %s: %w", source.Name(), err)
	}
	safety, err := NewSafetyTable(source.Name(), limits)
	if err != nil {
		return nil, err
	}

	return &KnowledgeBase{Catalog: catalog, Safety: safety}, nil
}

// EmbeddedSource serves the seed catalog compiled into the binary
type EmbeddedSource struct{}

// NewEmbeddedSource creates a source backed by the built-in seed data
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

// Name implements domain.CatalogSource
func (s *EmbeddedSource) Name() string {
	return "embedded"
}

// LoadDrugs implements domain.CatalogSource
func (s *EmbeddedSource) LoadDrugs(ctx context.Context) ([]domain.DrugRecord, error) {
	data, err := seedData.ReadFile(embeddedDrugsPath)
	if err != nil {
		return nil, err
	}
	return decodeDrugs(embeddedDrugsPath, data)
}

// LoadSafetyLimits implements domain.CatalogSource
func (s *EmbeddedSource) LoadSafetyLimits(ctx context.Context) (map[string]domain.SafetyLimit, error) {
	data, err := seedData.ReadFile(embeddedLimitsPath)
	if err != nil {
		return nil, err
	}
	return ParseSafetyLimits(embeddedLimitsPath, data)
}

// FileSource loads the catalog from files on disk. Drugs may be JSON or YAML,
// chosen by file extension. Without a safety-limit file the built-in table is used.
type FileSource struct {
	DrugsPath        string
	SafetyLimitsPath string
}

// NewFileSource creates a file-backed source
func NewFileSource(drugsPath, safetyLimitsPath string) *FileSource {
	return &FileSource{DrugsPath: drugsPath, SafetyLimitsPath: safetyLimitsPath}
}

// Name implements domain.CatalogSource
func (s *FileSource) Name() string {
	return "file:" + s.DrugsPath
}

// LoadDrugs implements domain.CatalogSource
func (s *FileSource) LoadDrugs(ctx context.Context) ([]domain.DrugRecord, error) {
	data, err := os.ReadFile(s.DrugsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read drugs file: %w", err)
	}
	return decodeDrugs(s.DrugsPath, data)
}

// LoadSafetyLimits implements domain.CatalogSource
func (s *FileSource) LoadSafetyLimits(ctx context.Context) (map[string]domain.SafetyLimit, error) {
	if s.SafetyLimitsPath == "" {
		return NewEmbeddedSource().LoadSafetyLimits(ctx)
	}
	data, err := os.ReadFile(s.SafetyLimitsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read safety limits file: %w", err)
	}
	return ParseSafetyLimits(s.SafetyLimitsPath, data)
}

func decodeDrugs(path string, data []byte) ([]domain.DrugRecord, error) {
	var drugs []domain.DrugRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &drugs); err != nil {
			return nil, domain.NewCatalogError(path, "", fmt.Sprintf("decode: %v", err))
		}
	default:
		if err := json.Unmarshal(data, &drugs); err != nil {
			return nil, domain.NewCatalogError(path, "", fmt.Sprintf("decode: %v", err))
		}
	}
	return drugs, nil
}

// NewSource builds the CatalogSource selected by configuration. The postgres
// source lives in the repository package and is wired by the caller.
func NewSource(cfg domain.CatalogConfig) (domain.CatalogSource, error) {
	switch cfg.Source {
	case "", domain.CatalogSourceEmbedded:
		return NewEmbeddedSource(), nil
	case domain.CatalogSourceFile:
		if cfg.DrugsPath == "" {
			return nil, fmt.Errorf("file catalog source requires drugs_path")
		}
		return NewFileSource(cfg.DrugsPath, cfg.SafetyLimitsPath), nil
	case domain.CatalogSourceSQLite:
		return OpenSQLiteSource(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported catalog source %q", cfg.Source)
	}
}
