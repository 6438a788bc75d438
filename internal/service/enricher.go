package service

import (
	"strings"

	"github.com/medscan-resolver/internal/domain"
)

// DefaultWarningExcerptRunes caps label warning text appended to restrictions
const DefaultWarningExcerptRunes = 500

// Enricher merges extraction, catalog and label data into one record.
// It holds no mutable state.
type Enricher struct {
	warningExcerptRunes int
}

// NewEnricher creates an enricher; a non-positive cap takes the default
func NewEnricher(warningExcerptRunes int) *Enricher {
	if warningExcerptRunes <= 0 {
		warningExcerptRunes = DefaultWarningExcerptRunes
	}
	return &Enricher{warningExcerptRunes: warningExcerptRunes}
}

// Enrich builds the output record for one candidate. verification may be nil.
func (e *Enricher) Enrich(candidate domain.ExtractedMedication, resolution domain.ResolutionResult, verification *domain.VerificationResult) domain.MedicationRecord {
	record := domain.MedicationRecord{
		Name:         displayName(candidate, resolution),
		RawInput:     rawInput(candidate, resolution),
		Confidence:   resolution.Confidence,
		Unresolved:   !resolution.Resolved(),
		Dosage:       candidate.DosageText,
		Frequency:    candidate.Frequency,
		Duration:     candidate.Duration,
		Explanation:  candidate.Explanation,
		SideEffects:  candidate.SideEffects,
		Purpose:      candidate.Purpose,
		Restrictions: candidate.Restrictions,
		FDAVerified:  verification != nil,
	}
	if resolution.ResolvedName != nil {
		name := *resolution.ResolvedName
		record.ResolvedName = &name
	}

	if rec := resolution.MatchedRecord; rec != nil {
		record.Brand = rec.Brand
		record.KnownDosages = append([]string(nil), rec.Dosages...)
		record.DietaryPlan = rec.DietaryPlan
		record.HomeRemedies = rec.HomeRemedies
		if record.Purpose == "" {
			record.Purpose = rec.Usage
		}
		if record.Restrictions == "" {
			record.Restrictions = rec.Restrictions
		}
	}

	if verification == nil {
		return record
	}

	if verification.BrandName != "" {
		record.Name = verification.BrandName
	}
	record.GenericName = verification.GenericName
	if record.Purpose == "" {
		record.Purpose = verification.Purpose
	}
	if record.Purpose == "" {
		record.Purpose = verification.IndicationsAndUsage
	}
	if warning := strings.TrimSpace(verification.Warnings); warning != "" {
		record.Restrictions = appendLabelWarning(record.Restrictions, truncateRunes(warning, e.warningExcerptRunes))
	}
	record.DosageAndAdministration = verification.DosageAndAdministration
	record.StopUse = verification.StopUse
	record.DoNotUse = verification.DoNotUse

	return record
}

// displayName picks the resolved name, then a usable claimed name, then the literal
func displayName(candidate domain.ExtractedMedication, resolution domain.ResolutionResult) string {
	if resolution.ResolvedName != nil {
		return *resolution.ResolvedName
	}
	if name := strings.TrimSpace(candidate.ClaimedName); name != "" && !candidate.HasUnresolvedMarker() {
		return name
	}
	if literal := strings.TrimSpace(candidate.LiteralTranscription); literal != "" {
		return literal
	}
	return strings.TrimSpace(resolution.RawInput)
}

func rawInput(candidate domain.ExtractedMedication, resolution domain.ResolutionResult) string {
	if candidate.LiteralTranscription != "" {
		return candidate.LiteralTranscription
	}
	return resolution.RawInput
}

func appendLabelWarning(restrictions, excerpt string) string {
	note := "(FDA Warning: " + excerpt + "...)"
	if strings.TrimSpace(restrictions) == "" {
		return note
	}
	return restrictions + "\n" + note
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
