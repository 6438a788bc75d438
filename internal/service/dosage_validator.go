package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/internal/knowledge"
)

// DefaultMaxLiquidVolumeMl is the single oral dose volume above which a liquid
// dose is flagged for pharmacist confirmation.
const DefaultMaxLiquidVolumeMl = 50.0

var (
	milligramPattern  = regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*mg`)
	millilitrePattern = regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*ml`)
)

// DosageValidator checks free-text dosages against the safety table.
// It never blocks on input it cannot parse.
type DosageValidator struct {
	safety            *knowledge.SafetyTable
	maxLiquidVolumeMl float64
	logger            *logrus.Logger
}

// NewDosageValidator creates a validator over safety
func NewDosageValidator(safety *knowledge.SafetyTable, config domain.DosageConfig, logger *logrus.Logger) (*DosageValidator, error) {
	if safety == nil {
		return nil, fmt.Errorf("dosage validator requires a safety table")
	}
	if config.MaxLiquidVolumeMl == 0 {
		config.MaxLiquidVolumeMl = DefaultMaxLiquidVolumeMl
	}
	if config.MaxLiquidVolumeMl < 0 {
		return nil, fmt.Errorf("max liquid volume must be positive, got %v", config.MaxLiquidVolumeMl)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DosageValidator{
		safety:            safety,
		maxLiquidVolumeMl: config.MaxLiquidVolumeMl,
		logger:            logger,
	}, nil
}

// ValidateDosage checks one dosage string for drugName. A drug with no safety
// entry is reported safe.
func (v *DosageValidator) ValidateDosage(drugName, dosageText string) domain.DosageFinding {
	limit, ok := v.safety.Lookup(drugName)
	if !ok {
		return domain.DosageFinding{IsSafe: true}
	}
	return v.check(drugName, dosageText, limit)
}

// ValidateDosageAny validates against the first of names that has a safety entry
func (v *DosageValidator) ValidateDosageAny(names []string, dosageText string) domain.DosageFinding {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if limit, ok := v.safety.Lookup(name); ok {
			return v.check(name, dosageText, limit)
		}
	}
	return domain.DosageFinding{IsSafe: true}
}

func (v *DosageValidator) check(drugName, dosageText string, limit domain.SafetyLimit) domain.DosageFinding {
	if mg, ok := extractQuantity(milligramPattern, dosageText); ok {
		finding := domain.DosageFinding{IsSafe: true, ExtractedMg: &mg}
		if mg > limit.MaxSingleDoseMg {
			finding.IsSafe = false
			finding.Warning = fmt.Sprintf(
				"Potential Overdose: This dose (%smg) exceeds the typical maximum single dose (%smg) for %s.",
				formatQuantity(mg), formatQuantity(limit.MaxSingleDoseMg), drugName)
			v.logger.WithFields(logrus.Fields{
				"drug":     drugName,
				"dose_mg":  mg,
				"limit_mg": limit.MaxSingleDoseMg,
			}).Info("Dose exceeds single-dose ceiling")
		}
		return finding
	}

	if ml, ok := extractQuantity(millilitrePattern, dosageText); ok && ml > v.maxLiquidVolumeMl {
		v.logger.WithFields(logrus.Fields{
			"drug":      drugName,
			"volume_ml": ml,
		}).Info("Liquid dose exceeds volume ceiling")
		return domain.DosageFinding{
			IsSafe: false,
			Warning: fmt.Sprintf(
				"High Volume Alert: %sml is an unusually large dose for oral medication. Confirm with a pharmacist.",
				formatQuantity(ml)),
		}
	}

	return domain.DosageFinding{IsSafe: true}
}

func extractQuantity(pattern *regexp.Regexp, text string) (float64, bool) {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
