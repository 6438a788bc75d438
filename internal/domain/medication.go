// Package domain contains the core entities of the medication resolution pipeline:
// catalog records, safety limits, and the per-candidate results produced while a
// noisy drug name is resolved, verified against the openFDA drug label service,
// enriched, and checked against single-dose safety limits.
package domain

import "strings"

// Markers the upstream extraction step writes into the claimed name when it
// could not read a drug name from the prescription.
const (
	UnresolvedMarker = "[UNRESOLVED]"
	UnreadableMarker = "[UNREADABLE]"
)

// DrugRecord is a Local Knowledge Base entry. Records are immutable once loaded.
type DrugRecord struct {
	Name         string   `json:"name" yaml:"name"`
	Brand        string   `json:"brand" yaml:"brand"`
	Dosages      []string `json:"dosages,omitempty" yaml:"dosages"`
	Usage        string   `json:"usage,omitempty" yaml:"usage"`
	DietaryPlan  string   `json:"dietary_plan,omitempty" yaml:"dietary_plan"`
	HomeRemedies string   `json:"home_remedies,omitempty" yaml:"home_remedies"`
	Restrictions string   `json:"restrictions,omitempty" yaml:"restrictions"`
}

// SafetyLimit holds the known dose ceilings for a drug alias
type SafetyLimit struct {
	MaxSingleDoseMg float64 `json:"max_single_dose_mg" yaml:"max_single_dose_mg"`
	MaxDailyDoseMg  float64 `json:"max_daily_dose_mg" yaml:"max_daily_dose_mg"`
	TypicalUnit     string  `json:"typical_unit" yaml:"typical_unit"`
}

// MatchKind records which rule accepted (or rejected) a resolution
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
	MatchFuzzy  MatchKind = "fuzzy"
	MatchNone   MatchKind = "none"
)

// ResolutionResult is the outcome of resolving one raw candidate string against the catalog.
// ResolvedName and MatchedRecord are nil when the best candidate scored below the threshold;
// Confidence is still reported for diagnostics in that case.
type ResolutionResult struct {
	RawInput      string      `json:"raw_input"`
	ResolvedName  *string     `json:"resolved_name"`
	Confidence    int         `json:"confidence"`
	MatchedRecord *DrugRecord `json:"matched_record,omitempty"`
	MatchKind     MatchKind   `json:"match_kind"`
}

// Resolved reports whether the input was matched to a catalog entry
func (r ResolutionResult) Resolved() bool {
	return r.ResolvedName != nil
}

// VerificationResult carries authoritative label data from the regulatory service.
// A nil *VerificationResult means the name could not be verified.
type VerificationResult struct {
	BrandName               string `json:"brand_name"`
	GenericName             string `json:"generic_name"`
	Purpose                 string `json:"purpose,omitempty"`
	Warnings                string `json:"warnings,omitempty"`
	IndicationsAndUsage     string `json:"indications_and_usage,omitempty"`
	DosageAndAdministration string `json:"dosage_and_administration,omitempty"`
	StopUse                 string `json:"stop_use,omitempty"`
	DoNotUse                string `json:"do_not_use,omitempty"`
}

// DosageFinding is the dosage validator's verdict on one dosage string
type DosageFinding struct {
	IsSafe      bool     `json:"is_safe"`
	ExtractedMg *float64 `json:"extracted_mg,omitempty"`
	Warning     string   `json:"warning,omitempty"`
}

// ExtractedMedication is one medication as produced by the upstream extraction step.
// JSON names follow the extraction step's output format.
type ExtractedMedication struct {
	LiteralTranscription string `json:"raw_ocr,omitempty"`
	ClaimedName          string `json:"name"`
	DosageText           string `json:"dosage,omitempty"`
	Frequency            string `json:"frequency,omitempty"`
	Duration             string `json:"duration,omitempty"`
	Explanation          string `json:"explanation,omitempty"`
	Purpose              string `json:"purpose,omitempty"`
	SideEffects          string `json:"sideEffects,omitempty"`
	Restrictions         string `json:"restrictions,omitempty"`
}

// HasUnresolvedMarker reports whether the extraction step flagged the name as unreadable
func (m ExtractedMedication) HasUnresolvedMarker() bool {
	name := strings.TrimSpace(m.ClaimedName)
	return name == UnresolvedMarker || name == UnreadableMarker
}

// ResolutionInput picks the string the resolver should run against: the literal
// transcription when the candidate carries one, otherwise the claimed name.
func (m ExtractedMedication) ResolutionInput() string {
	if literal := strings.TrimSpace(m.LiteralTranscription); literal != "" {
		return literal
	}
	if m.HasUnresolvedMarker() {
		return ""
	}
	return m.ClaimedName
}

// MedicationRecord is the pipeline output for one candidate. FDAVerified is always
// serialized so callers can tell "checked and failed" from "not checked".
type MedicationRecord struct {
	Name         string  `json:"name"`
	GenericName  string  `json:"genericName,omitempty"`
	RawInput     string  `json:"raw_ocr,omitempty"`
	ResolvedName *string `json:"resolvedName"`
	Confidence   int     `json:"confidence"`
	Unresolved   bool    `json:"unresolved"`

	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
	SideEffects  string `json:"sideEffects,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	Restrictions string `json:"restrictions,omitempty"`

	// Knowledge base enrichment
	Brand        string   `json:"brand,omitempty"`
	KnownDosages []string `json:"knownDosages,omitempty"`
	DietaryPlan  string   `json:"dietaryPlan,omitempty"`
	HomeRemedies string   `json:"homeRemedies,omitempty"`

	// Label enrichment
	FDAVerified             bool   `json:"fdaVerified"`
	DosageAndAdministration string `json:"dosageAndAdministration,omitempty"`
	StopUse                 string `json:"stopUse,omitempty"`
	DoNotUse                string `json:"doNotUse,omitempty"`

	DosageCheck DosageFinding `json:"dosageCheck"`
}
