package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/settree/pkg/history"
	"github.com/vanderheijden86/settree/pkg/settings"
)

// PreviewModel shows the selected page: its description rendered as
// markdown and a table of its options with their current values.
type PreviewModel struct {
	viewport   viewport.Model
	mdRenderer *glamour.TermRenderer
	wrapWidth  int
	maxWrap    int
	theme      Theme
	pageID     string
	markdown   string
}

// NewPreviewModel creates an empty preview.
func NewPreviewModel(theme Theme) PreviewModel {
	p := PreviewModel{viewport: viewport.New(40, 20), theme: theme}
	p.setWrap(40)
	return p
}

func (p *PreviewModel) setWrap(width int) {
	width = max(width, 20)
	if width == p.wrapWidth && p.mdRenderer != nil {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	p.mdRenderer = r
	p.wrapWidth = width
}

// SetMaxWrap caps the word wrap width of rendered descriptions. Zero wraps
// at the pane width.
func (p *PreviewModel) SetMaxWrap(width int) {
	p.maxWrap = width
}

// SetSize resizes the pane and re-wraps its content.
func (p *PreviewModel) SetSize(width, height int) {
	p.viewport.Width = max(width, 1)
	p.viewport.Height = max(height, 1)
	wrap := width - 2
	if p.maxWrap > 0 {
		wrap = min(wrap, p.maxWrap)
	}
	p.setWrap(wrap)
	p.render()
}

// PageID returns the page on display.
func (p PreviewModel) PageID() string {
	return p.pageID
}

// Markdown returns the markdown source of the current content.
func (p PreviewModel) Markdown() string {
	return p.markdown
}

// Show renders node from tree with values from edits.
func (p *PreviewModel) Show(tree *settings.Tree, edits *settings.Context, node *settings.Node) {
	if node == nil {
		p.pageID = ""
		p.markdown = ""
		p.viewport.SetContent("")
		return
	}
	if node.ID != p.pageID {
		p.viewport.GotoTop()
	}
	p.pageID = node.ID
	p.markdown = pageMarkdown(tree, edits, node)
	p.render()
}

func (p *PreviewModel) render() {
	if p.markdown == "" {
		return
	}
	content := p.markdown
	if p.mdRenderer != nil {
		if md, err := p.mdRenderer.Render(p.markdown); err == nil {
			content = strings.TrimRight(md, "\n ")
		}
	}
	p.viewport.SetContent(content)
}

// Update scrolls the viewport.
func (p PreviewModel) Update(msg tea.Msg) (PreviewModel, tea.Cmd) {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View renders the visible part of the preview.
func (p PreviewModel) View() string {
	if p.pageID == "" {
		return p.theme.MutedText.Render("Select a page to see its settings.")
	}
	return p.viewport.View()
}

// pageMarkdown builds the markdown shown for node.
func pageMarkdown(tree *settings.Tree, edits *settings.Context, node *settings.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", node.Name)
	if crumbs := tree.PathNames(node.ID); len(crumbs) > 1 {
		fmt.Fprintf(&sb, "*%s*\n\n", history.Breadcrumbs(crumbs, node.ID))
	}

	if node.IsGroup() {
		fmt.Fprintf(&sb, "%d pages in this group.\n", len(node.Children))
		return sb.String()
	}

	page := node.Page
	if project := tree.ProjectOf(node.ID); project != "" {
		fmt.Fprintf(&sb, "Project setting for **%s**.\n\n", project)
	}
	if desc := strings.TrimSpace(page.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	if edits != nil {
		if err := edits.Error(node.ID); err != nil {
			fmt.Fprintf(&sb, "> **Error:** %s\n\n", err)
		}
	}
	if len(page.Options) == 0 {
		if len(node.Children) > 0 {
			fmt.Fprintf(&sb, "%d sub-pages.\n", len(node.Children))
		}
		return sb.String()
	}

	sb.WriteString("| Option | Value | Default |\n")
	sb.WriteString("|---|---|---|\n")
	for _, opt := range page.Options {
		value := opt.Effective()
		if edits != nil {
			if v, err := edits.Value(node.ID, opt.Key); err == nil {
				value = v
			}
		}
		label := opt.Label
		if label == "" {
			label = opt.Key
		}
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", escapeCell(label), escapeCell(value), escapeCell(opt.Default))
	}
	return sb.String()
}

func escapeCell(s string) string {
	if s == "" {
		return " "
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
