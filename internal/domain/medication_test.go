package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractedMedication_ResolutionInput(t *testing.T) {
	tests := []struct {
		name     string
		med      ExtractedMedication
		expected string
	}{
		{"literal wins over claimed name", ExtractedMedication{LiteralTranscription: "D0l0", ClaimedName: "Dolo 650"}, "D0l0"},
		{"claimed name without literal", ExtractedMedication{ClaimedName: "Amoxicillin"}, "Amoxicillin"},
		{"whitespace literal ignored", ExtractedMedication{LiteralTranscription: "   ", ClaimedName: "Lipitor"}, "Lipitor"},
		{"unresolved marker with literal", ExtractedMedication{LiteralTranscription: "Syp Calp", ClaimedName: UnresolvedMarker}, "Syp Calp"},
		{"unreadable marker without literal", ExtractedMedication{ClaimedName: UnreadableMarker}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.med.ResolutionInput())
		})
	}
}

func TestExtractedMedication_DecodesExtractionFormat(t *testing.T) {
	payload := `{"raw_ocr":"Syp Calp... 5ml","name":"[UNRESOLVED]","dosage":"5ml","frequency":"TDS","sideEffects":"nausea"}`

	var med ExtractedMedication
	require.NoError(t, json.Unmarshal([]byte(payload), &med))

	assert.Equal(t, "Syp Calp... 5ml", med.LiteralTranscription)
	assert.True(t, med.HasUnresolvedMarker())
	assert.Equal(t, "5ml", med.DosageText)
	assert.Equal(t, "TDS", med.Frequency)
	assert.Equal(t, "nausea", med.SideEffects)
}

func TestMedicationRecord_AlwaysSerializesVerificationFlag(t *testing.T) {
	data, err := json.Marshal(MedicationRecord{Name: "Calpol"})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	verified, ok := fields["fdaVerified"]
	require.True(t, ok, "fdaVerified must always be present")
	assert.Equal(t, false, verified)

	resolved, ok := fields["resolvedName"]
	require.True(t, ok)
	assert.Nil(t, resolved)
}
