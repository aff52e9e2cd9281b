package models

import "strings"

// Dimension is one of the fixed aesthetic dimensions an artwork is rated on.
type Dimension string

// The closed set of rating dimensions.
const (
	DimensionThemeAndLogic        Dimension = "theme_and_logic"
	DimensionCreativity           Dimension = "creativity"
	DimensionLayoutAndComposition Dimension = "layout_and_composition"
	DimensionSpaceAndPerspective  Dimension = "space_and_perspective"
	DimensionSenseOfOrder         Dimension = "sense_of_order"
	DimensionLightAndShadow       Dimension = "light_and_shadow"
	DimensionColor                Dimension = "color"
	DimensionDetailsAndTexture    Dimension = "details_and_texture"
	DimensionOverall              Dimension = "overall"
	DimensionMood                 Dimension = "mood"
)

// Dimensions lists every dimension in canonical order.
var Dimensions = []Dimension{
	DimensionThemeAndLogic,
	DimensionCreativity,
	DimensionLayoutAndComposition,
	DimensionSpaceAndPerspective,
	DimensionSenseOfOrder,
	DimensionLightAndShadow,
	DimensionColor,
	DimensionDetailsAndTexture,
	DimensionOverall,
	DimensionMood,
}

type dimensionInfo struct {
	title      string
	definition string
}

var dimensionInfos = map[Dimension]dimensionInfo{
	DimensionThemeAndLogic:        {"Theme and Logic", "The central idea aligns with the artistic expression, ensuring consistency and appropriateness in composition, layout, and color."},
	DimensionCreativity:           {"Creativity", "Innovative qualities that break conventions, including satire, self-deprecation, and allegorical warnings."},
	DimensionLayoutAndComposition: {"Layout and Composition", "The visual structure and organization of an image, reflecting the underlying logic and essence of its form."},
	DimensionSpaceAndPerspective:  {"Space and Perspective", "Layered spatial arrangements and perspective techniques create three-dimensionality and spatial effects."},
	DimensionSenseOfOrder:         {"Sense of Order", "Visual unity and consistency in morphological, spatial, orientational, and dynamic elements."},
	DimensionLightAndShadow:       {"Light and Shadow", "Enhance visual rhythm and realism, decorate space, suggest themes, and segment the image."},
	DimensionColor:                {"Color", "Evokes emotional atmospheres with a harmonious palette, using contrasts in temperature, brightness, and purity."},
	DimensionDetailsAndTexture:    {"Details and Texture", "Vivid details and delicate textures enhance realism, imbuing life into the image."},
	DimensionOverall:              {"The Overall", "Emphasizes coherence and a clear theme, combining form and spirit in the presentation."},
	DimensionMood:                 {"Mood", "Creates a poetic space blending scenes, reality, and illusion, emphasizing tranquility, emptiness, and spirituality."},
}

// Title returns the display name of the dimension.
func (d Dimension) Title() string {
	return dimensionInfos[d].title
}

// Definition returns what the dimension measures. Definitions are shown to
// language models so extracted reasons land in the right column.
func (d Dimension) Definition() string {
	return dimensionInfos[d].definition
}

// ReasonColumn is the dataset column holding the extracted reason for the dimension.
func (d Dimension) ReasonColumn() string {
	return "reason_for_" + string(d)
}

// Valid reports whether d belongs to the closed set.
func (d Dimension) Valid() bool {
	_, ok := dimensionInfos[d]

	return ok
}

// ParseDimension matches s against the closed set, ignoring case, surrounding
// whitespace and spaces used instead of underscores.
func ParseDimension(s string) (Dimension, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	d := Dimension(normalized)
	if !d.Valid() {
		return "", false
	}

	return d, true
}

// DimensionIndex returns the canonical position of d, or len(Dimensions) when unknown.
func DimensionIndex(d Dimension) int {
	for i, candidate := range Dimensions {
		if candidate == d {
			return i
		}
	}

	return len(Dimensions)
}
