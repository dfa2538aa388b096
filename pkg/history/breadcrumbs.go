package history

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// BreadcrumbWidth is the widest breadcrumb shown in the recent popup.
const BreadcrumbWidth = 50

// BreadcrumbSeparator joins the path components.
const BreadcrumbSeparator = " > "

// Breadcrumbs joins a root-to-page name path and cuts it to
// BreadcrumbWidth cells, ending in an ellipsis when shortened. With no
// names it returns fallback.
func Breadcrumbs(names []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}
	text := strings.Join(names, BreadcrumbSeparator)
	if runewidth.StringWidth(text) <= BreadcrumbWidth {
		return text
	}
	return runewidth.Truncate(text, BreadcrumbWidth, "…")
}
