package catalog

import (
	"fmt"
	"strings"
)

// SheetTitle builds a title such as "Ocean Life: Dolphins #2". ordinal is
// the 1-based position of the sheet within its batch.
func SheetTitle(theme Theme, subTheme string, ordinal int) string {
	name := theme.DisplayName()
	if name == "" {
		name = string(theme)
	}
	if sub := strings.TrimSpace(subTheme); sub != "" {
		name = name + ": " + sub
	}
	return fmt.Sprintf("%s #%d", name, ordinal)
}
