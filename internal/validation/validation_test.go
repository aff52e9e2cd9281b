package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
)

func TestValidateStruct_EvidenceRecord(t *testing.T) {
	valid := models.EvidenceRecord{
		Filename:  "a.jpg",
		Dimension: models.DimensionColor,
		Level:     models.LevelGood,
		Reason:    "balanced palette",
	}

	tests := []struct {
		name    string
		mutate  func(r *models.EvidenceRecord)
		wantErr string
	}{
		{"valid", func(*models.EvidenceRecord) {}, ""},
		{"empty reason is allowed", func(r *models.EvidenceRecord) { r.Reason = "" }, ""},
		{"missing filename", func(r *models.EvidenceRecord) { r.Filename = "" }, "Filename is required"},
		{"unknown dimension", func(r *models.EvidenceRecord) { r.Dimension = "brushwork" }, "quality dimensions"},
		{"null byte in reason", func(r *models.EvidenceRecord) { r.Reason = "a\x00b" }, "NULL bytes"},
		{"missing level", func(r *models.EvidenceRecord) { r.Level = "" }, "Level is required"},
		{"path in filename", func(r *models.EvidenceRecord) { r.Filename = "../secrets/a.jpg" }, "plain image filename"},
		{"nested filename", func(r *models.EvidenceRecord) { r.Filename = "dir/a.jpg" }, "plain image filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := valid
			tt.mutate(&record)

			err := ValidateStruct(record)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, critiqueerrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStruct_DimensionOnPlainString(t *testing.T) {
	type row struct {
		Dimension string  `validate:"dimension"`
		Name      *string `validate:"no_null_bytes"`
	}

	require.NoError(t, ValidateStruct(row{Dimension: "Theme And Logic"}))
	require.Error(t, ValidateStruct(row{Dimension: "texture"}))

	bad := "x\x00"
	require.Error(t, ValidateStruct(row{Dimension: "color", Name: &bad}))
}
