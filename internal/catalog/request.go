package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultQuantity    = 1
	DefaultComplexity  = 50
	DefaultMaxQuantity = 10

	maxSubThemeLength = 128
	maxPromptLength   = 1000
)

// Input is a generation request as received from the caller. Nil pointers
// mean "not provided" and receive defaults.
type Input struct {
	Technique           string
	Theme               string
	SubTheme            string
	AgeGroup            string
	Prompt              string
	Complexity          *int
	Quantity            *int
	PaperSize           string
	Orientation         string
	IncludeInstructions *bool
	IncludeWatermark    *bool
}

// Spec is an accepted generation request. It is never mutated after Validate returns it.
type Spec struct {
	Technique           Technique
	Theme               Theme
	SubTheme            string
	AgeGroup            AgeGroup
	Prompt              string
	Complexity          int
	Difficulty          int
	Quantity            int
	PaperSize           PaperSize
	Orientation         Orientation
	IncludeInstructions bool
	IncludeWatermark    bool
}

// Validator checks Input against the catalog.
type Validator struct {
	maxQuantity int
}

func NewValidator(maxQuantity int) *Validator {
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	return &Validator{maxQuantity: maxQuantity}
}

// MaxQuantity returns the largest batch a single request may ask for.
func (v *Validator) MaxQuantity() int {
	return v.maxQuantity
}

// Validate has no side effects. It reports the first offending field as an
// *InvalidRequestError.
func (v *Validator) Validate(in Input) (Spec, error) {
	var spec Spec

	technique, err := requireMember("technique", in.Technique, ParseTechnique)
	if err != nil {
		return Spec{}, err
	}
	theme, err := requireMember("theme", in.Theme, ParseTheme)
	if err != nil {
		return Spec{}, err
	}
	ageGroup, err := requireMember("age_group", in.AgeGroup, ParseAgeGroup)
	if err != nil {
		return Spec{}, err
	}
	spec.Technique, spec.Theme, spec.AgeGroup = technique, theme, ageGroup

	spec.SubTheme = strings.TrimSpace(in.SubTheme)
	if utf8.RuneCountInString(spec.SubTheme) > maxSubThemeLength {
		return Spec{}, invalid("sub_theme", fmt.Sprintf("must be at most %d characters", maxSubThemeLength))
	}
	spec.Prompt = strings.TrimSpace(in.Prompt)
	if utf8.RuneCountInString(spec.Prompt) > maxPromptLength {
		return Spec{}, invalid("prompt", fmt.Sprintf("must be at most %d characters", maxPromptLength))
	}

	spec.Complexity = DefaultComplexity
	if in.Complexity != nil {
		spec.Complexity = *in.Complexity
	}
	if spec.Complexity < 0 || spec.Complexity > 100 {
		return Spec{}, invalid("complexity", "must be between 0 and 100")
	}
	spec.Difficulty = Difficulty(spec.Complexity)

	spec.Quantity = DefaultQuantity
	if in.Quantity != nil {
		spec.Quantity = *in.Quantity
	}
	if spec.Quantity < 1 || spec.Quantity > v.maxQuantity {
		return Spec{}, invalid("quantity", fmt.Sprintf("must be between 1 and %d", v.maxQuantity))
	}

	spec.PaperSize = PaperA4
	if strings.TrimSpace(in.PaperSize) != "" {
		size, ok := ParsePaperSize(in.PaperSize)
		if !ok {
			return Spec{}, invalid("paper_size", "is not a recognized paper size")
		}
		spec.PaperSize = size
	}

	spec.Orientation = OrientationPortrait
	if strings.TrimSpace(in.Orientation) != "" {
		orientation, ok := ParseOrientation(in.Orientation)
		if !ok {
			return Spec{}, invalid("orientation", "must be portrait or landscape")
		}
		spec.Orientation = orientation
	}

	spec.IncludeInstructions = true
	if in.IncludeInstructions != nil {
		spec.IncludeInstructions = *in.IncludeInstructions
	}
	if in.IncludeWatermark != nil {
		spec.IncludeWatermark = *in.IncludeWatermark
	}

	return spec, nil
}

// Difficulty maps complexity 0-100 onto 1-5 as ceil(complexity/20).
func Difficulty(complexity int) int {
	d := (complexity + 19) / 20
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}

func requireMember[T ~string](field, raw string, parse func(string) (T, bool)) (T, error) {
	var zero T
	if strings.TrimSpace(raw) == "" {
		return zero, invalid(field, "is required")
	}
	v, ok := parse(raw)
	if !ok {
		return zero, invalid(field, fmt.Sprintf("%q is not a recognized value", strings.TrimSpace(raw)))
	}
	return v, nil
}
