// Package catalog holds the closed worksheet enumerations and turns raw
// generation input into a validated Spec.
package catalog

import "strings"

type Technique string

const (
	TechniqueColoring       Technique = "COLORING"
	TechniqueWatercolor     Technique = "WATERCOLOR"
	TechniqueCollage        Technique = "COLLAGE"
	TechniqueDotArt         Technique = "DOT_ART"
	TechniquePatternDrawing Technique = "PATTERN_DRAWING"
	TechniquePaperCutting   Technique = "PAPER_CUTTING"
	TechniqueOilPastel      Technique = "OIL_PASTEL"
	TechniqueMandala        Technique = "MANDALA"
)

type Theme string

const (
	ThemeAnimals      Theme = "ANIMALS"
	ThemeNature       Theme = "NATURE"
	ThemeSpace        Theme = "SPACE"
	ThemeOcean        Theme = "OCEAN"
	ThemeSeasons      Theme = "SEASONS"
	ThemeHolidays     Theme = "HOLIDAYS"
	ThemeFantasy      Theme = "FANTASY"
	ThemeVehicles     Theme = "VEHICLES"
	ThemeFood         Theme = "FOOD"
	ThemeArchitecture Theme = "ARCHITECTURE"
)

type AgeGroup string

const (
	AgePreschool       AgeGroup = "PRESCHOOL"
	AgeEarlyElementary AgeGroup = "EARLY_ELEMENTARY"
	AgeUpperElementary AgeGroup = "UPPER_ELEMENTARY"
	AgeMiddleSchool    AgeGroup = "MIDDLE_SCHOOL"
	AgeHighSchool      AgeGroup = "HIGH_SCHOOL"
)

type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperA3     PaperSize = "A3"
	PaperLetter PaperSize = "LETTER"
	PaperLegal  PaperSize = "LEGAL"
)

type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Option is one member of an enumeration as exposed to clients.
type Option struct {
	Value       string `json:"value"`
	DisplayName string `json:"display_name"`
}

type enumeration[T ~string] struct {
	options []Option
	lookup  map[string]T
	display map[T]string
}

func newEnumeration[T ~string](pairs ...Option) enumeration[T] {
	e := enumeration[T]{
		options: pairs,
		lookup:  make(map[string]T, len(pairs)),
		display: make(map[T]string, len(pairs)),
	}
	for _, p := range pairs {
		e.lookup[normalizeKey(p.Value)] = T(p.Value)
		e.display[T(p.Value)] = p.DisplayName
	}
	return e
}

func (e enumeration[T]) parse(raw string) (T, bool) {
	v, ok := e.lookup[normalizeKey(raw)]
	return v, ok
}

func (e enumeration[T]) list() []Option {
	out := make([]Option, len(e.options))
	copy(out, e.options)
	return out
}

// normalizeKey folds case and treats spaces and dashes as underscores,
// so "dot art", "Dot-Art" and "DOT_ART" all match.
func normalizeKey(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	return strings.ReplaceAll(key, " ", "_")
}

var (
	techniques = newEnumeration[Technique](
		Option{string(TechniqueColoring), "Coloring"},
		Option{string(TechniqueWatercolor), "Watercolor"},
		Option{string(TechniqueCollage), "Collage"},
		Option{string(TechniqueDotArt), "Dot Art"},
		Option{string(TechniquePatternDrawing), "Pattern Drawing"},
		Option{string(TechniquePaperCutting), "Paper Cutting"},
		Option{string(TechniqueOilPastel), "Oil Pastel"},
		Option{string(TechniqueMandala), "Mandala"},
	)
	themes = newEnumeration[Theme](
		Option{string(ThemeAnimals), "Animals"},
		Option{string(ThemeNature), "Nature"},
		Option{string(ThemeSpace), "Outer Space"},
		Option{string(ThemeOcean), "Ocean Life"},
		Option{string(ThemeSeasons), "Seasons"},
		Option{string(ThemeHolidays), "Holidays"},
		Option{string(ThemeFantasy), "Fantasy"},
		Option{string(ThemeVehicles), "Vehicles"},
		Option{string(ThemeFood), "Food"},
		Option{string(ThemeArchitecture), "Architecture"},
	)
	ageGroups = newEnumeration[AgeGroup](
		Option{string(AgePreschool), "Preschool (3-5)"},
		Option{string(AgeEarlyElementary), "Early Elementary (6-8)"},
		Option{string(AgeUpperElementary), "Upper Elementary (9-11)"},
		Option{string(AgeMiddleSchool), "Middle School (11-14)"},
		Option{string(AgeHighSchool), "High School (14-18)"},
	)
	paperSizes = newEnumeration[PaperSize](
		Option{string(PaperA4), "A4"},
		Option{string(PaperA3), "A3"},
		Option{string(PaperLetter), "US Letter"},
		Option{string(PaperLegal), "US Legal"},
	)
	orientations = newEnumeration[Orientation](
		Option{string(OrientationPortrait), "Portrait"},
		Option{string(OrientationLandscape), "Landscape"},
	)
)

func ParseTechnique(raw string) (Technique, bool)     { return techniques.parse(raw) }
func ParseTheme(raw string) (Theme, bool)             { return themes.parse(raw) }
func ParseAgeGroup(raw string) (AgeGroup, bool)       { return ageGroups.parse(raw) }
func ParsePaperSize(raw string) (PaperSize, bool)     { return paperSizes.parse(raw) }
func ParseOrientation(raw string) (Orientation, bool) { return orientations.parse(raw) }

func (t Technique) DisplayName() string   { return techniques.display[t] }
func (t Theme) DisplayName() string       { return themes.display[t] }
func (a AgeGroup) DisplayName() string    { return ageGroups.display[a] }
func (p PaperSize) DisplayName() string   { return paperSizes.display[p] }
func (o Orientation) DisplayName() string { return orientations.display[o] }

// Listing is the full catalog as served by GET /api/catalog.
type Listing struct {
	Techniques   []Option `json:"techniques"`
	Themes       []Option `json:"themes"`
	AgeGroups    []Option `json:"age_groups"`
	PaperSizes   []Option `json:"paper_sizes"`
	Orientations []Option `json:"orientations"`
}

// All returns a copy of every enumeration.
func All() Listing {
	return Listing{
		Techniques:   techniques.list(),
		Themes:       themes.list(),
		AgeGroups:    ageGroups.list(),
		PaperSizes:   paperSizes.list(),
		Orientations: orientations.list(),
	}
}
