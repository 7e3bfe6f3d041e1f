package catalog

import (
	"errors"
	"testing"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestValidateDefaults(t *testing.T) {
	v := NewValidator(10)
	spec, err := v.Validate(Input{Technique: "coloring", Theme: "ocean", AgeGroup: "preschool"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Technique != TechniqueColoring || spec.Theme != ThemeOcean || spec.AgeGroup != AgePreschool {
		t.Fatalf("unexpected enumerations: %+v", spec)
	}
	if spec.Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", spec.Quantity)
	}
	if spec.Complexity != 50 || spec.Difficulty != 3 {
		t.Errorf("expected complexity 50 / difficulty 3, got %d / %d", spec.Complexity, spec.Difficulty)
	}
	if spec.PaperSize != PaperA4 || spec.Orientation != OrientationPortrait {
		t.Errorf("expected A4 portrait, got %s %s", spec.PaperSize, spec.Orientation)
	}
	if !spec.IncludeInstructions || spec.IncludeWatermark {
		t.Errorf("expected instructions on and watermark off, got %v %v", spec.IncludeInstructions, spec.IncludeWatermark)
	}
}

func TestValidateRejectsFields(t *testing.T) {
	valid := Input{Technique: "MANDALA", Theme: "SPACE", AgeGroup: "HIGH_SCHOOL"}

	tests := []struct {
		name   string
		mutate func(in *Input)
		field  string
	}{
		{name: "缺少技法", mutate: func(in *Input) { in.Technique = "" }, field: "technique"},
		{name: "未知技法", mutate: func(in *Input) { in.Technique = "UNKNOWN_TECH" }, field: "technique"},
		{name: "缺少主题", mutate: func(in *Input) { in.Theme = "  " }, field: "theme"},
		{name: "未知主题", mutate: func(in *Input) { in.Theme = "DINOSAURS" }, field: "theme"},
		{name: "未知年龄段", mutate: func(in *Input) { in.AgeGroup = "TODDLER" }, field: "age_group"},
		{name: "复杂度过高", mutate: func(in *Input) { in.Complexity = intPtr(101) }, field: "complexity"},
		{name: "复杂度为负", mutate: func(in *Input) { in.Complexity = intPtr(-1) }, field: "complexity"},
		{name: "数量为零", mutate: func(in *Input) { in.Quantity = intPtr(0) }, field: "quantity"},
		{name: "数量超限", mutate: func(in *Input) { in.Quantity = intPtr(11) }, field: "quantity"},
		{name: "未知纸张", mutate: func(in *Input) { in.PaperSize = "B5" }, field: "paper_size"},
		{name: "未知方向", mutate: func(in *Input) { in.Orientation = "diagonal" }, field: "orientation"},
	}

	v := NewValidator(10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := v.Validate(in)
			var invalidErr *InvalidRequestError
			if !errors.As(err, &invalidErr) {
				t.Fatalf("expected InvalidRequestError, got %v", err)
			}
			if invalidErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, invalidErr.Field)
			}
		})
	}
}

func TestValidateNormalisesInput(t *testing.T) {
	v := NewValidator(5)
	spec, err := v.Validate(Input{
		Technique:           "dot art",
		Theme:               "Ocean",
		SubTheme:            "  Dolphins ",
		AgeGroup:            "early-elementary",
		Complexity:          intPtr(0),
		Quantity:            intPtr(5),
		PaperSize:           "letter",
		Orientation:         "LANDSCAPE",
		IncludeInstructions: boolPtr(false),
		IncludeWatermark:    boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Technique != TechniqueDotArt || spec.AgeGroup != AgeEarlyElementary {
		t.Errorf("unexpected enumerations: %+v", spec)
	}
	if spec.SubTheme != "Dolphins" {
		t.Errorf("expected trimmed sub theme, got %q", spec.SubTheme)
	}
	if spec.Difficulty != 1 || spec.Quantity != 5 {
		t.Errorf("unexpected difficulty/quantity: %d/%d", spec.Difficulty, spec.Quantity)
	}
	if spec.PaperSize != PaperLetter || spec.Orientation != OrientationLandscape {
		t.Errorf("unexpected paper: %s %s", spec.PaperSize, spec.Orientation)
	}
	if spec.IncludeInstructions || !spec.IncludeWatermark {
		t.Errorf("explicit flags were not kept")
	}
}

func TestDifficulty(t *testing.T) {
	tests := []struct {
		complexity int
		want       int
	}{
		{0, 1}, {1, 1}, {20, 1}, {21, 2}, {40, 2}, {50, 3}, {60, 3}, {61, 4}, {80, 4}, {81, 5}, {100, 5},
	}
	for _, tt := range tests {
		if got := Difficulty(tt.complexity); got != tt.want {
			t.Errorf("Difficulty(%d) = %d, want %d", tt.complexity, got, tt.want)
		}
	}
}

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		name     string
		theme    Theme
		subTheme string
		ordinal  int
		want     string
	}{
		{name: "带子主题", theme: ThemeOcean, subTheme: "Dolphins", ordinal: 2, want: "Ocean Life: Dolphins #2"},
		{name: "无子主题", theme: ThemeSpace, subTheme: "", ordinal: 1, want: "Outer Space #1"},
		{name: "空白子主题", theme: ThemeFood, subTheme: "   ", ordinal: 3, want: "Food #3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SheetTitle(tt.theme, tt.subTheme, tt.ordinal); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAllListsEveryMember(t *testing.T) {
	listing := All()
	if len(listing.Techniques) != 8 || len(listing.Themes) != 10 || len(listing.AgeGroups) != 5 {
		t.Fatalf("unexpected catalog sizes: %d techniques, %d themes, %d age groups",
			len(listing.Techniques), len(listing.Themes), len(listing.AgeGroups))
	}
	for _, opt := range listing.Themes {
		theme, ok := ParseTheme(opt.Value)
		if !ok || theme.DisplayName() != opt.DisplayName {
			t.Errorf("theme %q does not round-trip", opt.Value)
		}
	}
	listing.Techniques[0].DisplayName = "mutated"
	if TechniqueColoring.DisplayName() != "Coloring" {
		t.Error("All must return a copy")
	}
}
