package llm

import (
	"artsheets/internal/catalog"
	"fmt"
	"strings"
)

var techniqueGuidance = map[catalog.Technique]string{
	catalog.TechniqueColoring:       "clean black line art on a white background with large closed areas ready to color",
	catalog.TechniqueWatercolor:     "soft light outlines that leave room for watercolor washes",
	catalog.TechniqueCollage:        "clearly separated shapes with dashed cut lines for a paper collage",
	catalog.TechniqueDotArt:         "outlines filled with evenly spaced circles for dot painting",
	catalog.TechniquePatternDrawing: "bold outlines divided into sections for repeating patterns",
	catalog.TechniquePaperCutting:   "simple silhouettes with dashed cutting guides",
	catalog.TechniqueOilPastel:      "thick simple outlines suited to oil pastel blending",
	catalog.TechniqueMandala:        "a symmetrical radial mandala composition",
}

var difficultyWords = [...]string{"", "very simple", "simple", "moderately detailed", "detailed", "highly intricate"}

// BuildPrompt renders the text sent to the backend for one sheet of a batch.
// ordinal is 1-based; batches larger than one ask for a distinct variation per sheet.
func BuildPrompt(spec catalog.Spec, ordinal, count int) string {
	subject := spec.Theme.DisplayName()
	if spec.SubTheme != "" {
		subject = fmt.Sprintf("%s (%s)", subject, spec.SubTheme)
	}

	difficulty := spec.Difficulty
	if difficulty < 1 || difficulty >= len(difficultyWords) {
		difficulty = catalog.Difficulty(catalog.DefaultComplexity)
	}

	parts := []string{
		fmt.Sprintf("A printable %s art worksheet about %s", spec.Technique.DisplayName(), subject),
		fmt.Sprintf("for %s students", spec.AgeGroup.DisplayName()),
		fmt.Sprintf("%s, difficulty %d of 5", difficultyWords[difficulty], difficulty),
	}
	if guidance := techniqueGuidance[spec.Technique]; guidance != "" {
		parts = append(parts, guidance)
	}
	parts = append(parts, fmt.Sprintf("%s %s page layout", spec.PaperSize.DisplayName(), spec.Orientation))
	if spec.IncludeInstructions {
		parts = append(parts, "with a short numbered list of step-by-step instructions at the bottom")
	} else {
		parts = append(parts, "no text on the page")
	}
	if extra := strings.TrimSpace(spec.Prompt); extra != "" {
		parts = append(parts, extra)
	}
	if count > 1 {
		parts = append(parts, fmt.Sprintf("variation %d of %d, use a different composition from the other variations", ordinal, count))
	}
	return strings.Join(parts, ", ") + "."
}
