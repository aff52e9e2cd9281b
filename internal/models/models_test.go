package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDimension(t *testing.T) {
	tests := []struct {
		input  string
		want   Dimension
		wantOK bool
	}{
		{"color", DimensionColor, true},
		{"  Light_And_Shadow ", DimensionLightAndShadow, true},
		{"layout and composition", DimensionLayoutAndComposition, true},
		{"texture", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDimension(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDimensionsAreComplete(t *testing.T) {
	assert.Len(t, Dimensions, 10)

	for i, d := range Dimensions {
		assert.True(t, d.Valid())
		assert.NotEmpty(t, d.Title())
		assert.NotEmpty(t, d.Definition())
		assert.Equal(t, i, DimensionIndex(d))
	}

	assert.Equal(t, "reason_for_mood", DimensionMood.ReasonColumn())
	assert.Equal(t, len(Dimensions), DimensionIndex("unknown"))
}

func TestParseLevel(t *testing.T) {
	got, ok := ParseLevel("very good")
	assert.True(t, ok)
	assert.Equal(t, LevelVeryGood, got)

	got, ok = ParseLevel(" Outstanding ")
	assert.True(t, ok)
	assert.Equal(t, LevelOutstanding, got)

	_, ok = ParseLevel("Superb")
	assert.False(t, ok)
	assert.Len(t, Levels, 9)
}

func TestEvidenceBundleJSON(t *testing.T) {
	assert.Equal(t, "[]", EvidenceBundle{}.JSON())
	assert.True(t, EvidenceBundle{}.Empty())

	b := EvidenceBundle{Records: []EvidenceRecord{
		{Filename: "a.jpg", Dimension: DimensionColor, Level: LevelGood, Reason: "warm palette"},
	}}
	assert.JSONEq(t,
		`[{"filename":"a.jpg","dimension":"color","level":"Good","reason":"warm palette"}]`,
		b.JSON())
}

func TestRetrievalResultFilenames(t *testing.T) {
	r := RetrievalResult{Hits: []RetrievalHit{{Filename: "b.jpg"}, {Filename: "a.jpg"}}}
	assert.Equal(t, []string{"b.jpg", "a.jpg"}, r.Filenames())
	assert.Empty(t, RetrievalResult{}.Filenames())
}
