package ui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/settree/pkg/settings"
)

// editField holds the form-bound value of one option.
type editField struct {
	opt  settings.Option
	text string
	on   bool
}

// raw returns the field as the string Context.SetValue takes.
func (f *editField) raw() string {
	if f.opt.Kind == settings.KindBool {
		return strconv.FormatBool(f.on)
	}
	return f.text
}

// EditForm edits the options of one page with a huh form. Values are not
// validated in the form: they go through settings.Context, which records
// bad input as the page's error.
type EditForm struct {
	form   *huh.Form
	pageID string
	fields []*editField
}

// NewEditForm builds a form for the page behind node, prefilled from edits.
func NewEditForm(edits *settings.Context, node *settings.Node, width int) (*EditForm, error) {
	if node == nil || node.Page == nil {
		return nil, fmt.Errorf("edit: %w: select a page", settings.ErrUnknownPage)
	}
	if len(node.Page.Options) == 0 {
		return nil, fmt.Errorf("edit: %s has no options", node.Name)
	}

	e := &EditForm{pageID: node.ID}
	var inputs []huh.Field
	for _, opt := range node.Page.Options {
		f := &editField{opt: opt}
		current, err := edits.Value(node.ID, opt.Key)
		if err != nil {
			return nil, err
		}
		title := opt.Label
		if title == "" {
			title = opt.Key
		}

		switch opt.Kind {
		case settings.KindBool:
			f.on, _ = strconv.ParseBool(current)
			inputs = append(inputs, huh.NewConfirm().
				Title(title).
				Description(opt.Key).
				Value(&f.on))
		case settings.KindChoice:
			f.text = current
			inputs = append(inputs, huh.NewSelect[string]().
				Title(title).
				Description(opt.Key).
				Options(huh.NewOptions(opt.Choices...)...).
				Value(&f.text))
		default:
			f.text = current
			input := huh.NewInput().
				Title(title).
				Description(opt.Key).
				Value(&f.text)
			if opt.Kind == settings.KindInt {
				input = input.Placeholder("number")
			}
			inputs = append(inputs, input)
		}
		e.fields = append(e.fields, f)
	}

	e.form = huh.NewForm(huh.NewGroup(inputs...).Title(node.Name)).
		WithTheme(huh.ThemeDracula()).
		WithWidth(max(width, 30)).
		WithShowHelp(true)
	return e, nil
}

// PageID returns the page being edited.
func (e *EditForm) PageID() string {
	return e.pageID
}

// Init starts the form.
func (e *EditForm) Init() tea.Cmd {
	return e.form.Init()
}

// Update passes every message to the form; huh needs its own internal
// messages as well as keys.
func (e *EditForm) Update(msg tea.Msg) tea.Cmd {
	model, cmd := e.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		e.form = f
	}
	return cmd
}

// Done reports whether the user submitted the form.
func (e *EditForm) Done() bool {
	return e.form.State == huh.StateCompleted
}

// Aborted reports whether the user cancelled the form.
func (e *EditForm) Aborted() bool {
	return e.form.State == huh.StateAborted
}

// View renders the form.
func (e *EditForm) View() string {
	return e.form.View()
}

// Apply writes the form values into edits. Valid values go first so that a
// rejected one is the error the page keeps. It returns how many values
// changed and the rejected ones.
func (e *EditForm) Apply(edits *settings.Context) (changed int, errs []error) {
	var valid, invalid []*editField
	for _, f := range e.fields {
		if _, err := f.opt.Normalize(f.raw()); err != nil {
			invalid = append(invalid, f)
			continue
		}
		valid = append(valid, f)
	}

	for _, f := range append(valid, invalid...) {
		before, _ := edits.Value(e.pageID, f.opt.Key)
		if err := edits.SetValue(e.pageID, f.opt.Key, f.raw()); err != nil {
			errs = append(errs, err)
			continue
		}
		if after, _ := edits.Value(e.pageID, f.opt.Key); after != before {
			changed++
		}
	}
	return changed, errs
}
