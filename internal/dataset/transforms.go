package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/gallery-ai/critic/internal/models"
)

// Column names of the rated artwork tables.
const (
	ColumnFilename           = "filename"
	ColumnComment            = "comment"
	ColumnArtisticCategories = "artistic_categories"
	ColumnPaintingCategory   = "painting_category"
	ColumnArtisticStyle      = "artistic_style"
	ColumnSubjectMatter      = "subject_matter"
)

// categorySeparator joins the parts of artistic_categories, e.g. "Oil*Impressionism*Landscape".
const categorySeparator = "*"

// ScoreToDescription maps a numeric score to its level label using half-open
// bins: [0,2) Abysmal up to [9,∞) Outstanding. Scores below 0 also map to Abysmal.
// It reports false for empty, non-numeric or NaN input.
func ScoreToDescription(score string) (string, bool) {
	s := strings.TrimSpace(score)
	if s == "" {
		return "", false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return "", false
	}

	var level models.Level

	switch {
	case v < 2:
		level = models.LevelAbysmal
	case v < 3:
		level = models.LevelHorrendous
	case v < 4:
		level = models.LevelPoor
	case v < 5:
		level = models.LevelBelowAverage
	case v < 6:
		level = models.LevelAverage
	case v < 7:
		level = models.LevelGood
	case v < 8:
		level = models.LevelVeryGood
	case v < 9:
		level = models.LevelExcellent
	default:
		level = models.LevelOutstanding
	}

	return string(level), true
}

// Categories are the three parts of an artistic_categories value. A part that
// is absent from the input is nil.
type Categories struct {
	PaintingCategory *string
	ArtisticStyle    *string
	SubjectMatter    *string
}

// SplitCategories splits "a*b*c" into its parts, trimming whitespace.
// Parts beyond the third are ignored; empty input yields all-nil.
func SplitCategories(raw string) Categories {
	var c Categories

	if strings.TrimSpace(raw) == "" || strings.EqualFold(strings.TrimSpace(raw), "nan") {
		return c
	}

	parts := strings.Split(raw, categorySeparator)
	targets := []**string{&c.PaintingCategory, &c.ArtisticStyle, &c.SubjectMatter}

	for i, target := range targets {
		if i >= len(parts) {
			break
		}

		part := strings.TrimSpace(parts[i])
		*target = &part
	}

	return c
}

// SplitStats summarizes SplitCategoryColumns.
type SplitStats struct {
	Rows           int
	WithCategories int
}

// SplitCategoryColumns adds painting_category, artistic_style and subject_matter
// derived from artistic_categories. Absent parts are written as empty cells.
func SplitCategoryColumns(t *Table) (SplitStats, error) {
	if err := t.Require(ColumnArtisticCategories); err != nil {
		return SplitStats{}, err
	}

	t.EnsureColumn(ColumnPaintingCategory)
	t.EnsureColumn(ColumnArtisticStyle)
	t.EnsureColumn(ColumnSubjectMatter)

	stats := SplitStats{Rows: t.Len()}

	for i := range t.Rows {
		c := SplitCategories(t.Get(i, ColumnArtisticCategories))
		if c.PaintingCategory != nil {
			stats.WithCategories++
		}

		t.Set(i, ColumnPaintingCategory, deref(c.PaintingCategory))
		t.Set(i, ColumnArtisticStyle, deref(c.ArtisticStyle))
		t.Set(i, ColumnSubjectMatter, deref(c.SubjectMatter))
	}

	return stats, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// BinStats summarizes BinScoreColumns.
type BinStats struct {
	Replaced       int
	SkippedEmpty   int
	MissingColumns []string
}

// BinScoreColumns replaces numeric scores in every dimension column with
// level labels. Empty cells are skipped and non-numeric cells left unchanged.
// It fails only when no dimension column is present.
func BinScoreColumns(t *Table) (BinStats, error) {
	var (
		stats   BinStats
		present []string
	)

	for _, d := range models.Dimensions {
		if t.Has(string(d)) {
			present = append(present, string(d))
		} else {
			stats.MissingColumns = append(stats.MissingColumns, string(d))
		}
	}

	if len(present) == 0 {
		return stats, t.Require(stats.MissingColumns...)
	}

	for _, col := range present {
		for i := range t.Rows {
			value := t.Get(i, col)
			if strings.TrimSpace(value) == "" {
				stats.SkippedEmpty++

				continue
			}

			if label, ok := ScoreToDescription(value); ok {
				t.Set(i, col, label)
				stats.Replaced++
			}
		}
	}

	return stats, nil
}
