package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// fileItem is one chat export offered by the picker.
type fileItem struct {
	Name string
	Path string
	Info string

	mod time.Time
}

func (i fileItem) Title() string       { return i.Name }
func (i fileItem) Description() string { return i.Info }
func (i fileItem) FilterValue() string { return i.Name }

// filePicker is a filterable list of export files. Filtering is a plain
// substring match over the typed text.
type filePicker struct {
	title    string
	input    textinput.Model
	list     list.Model
	all      []fileItem
	onPicked func(fileItem) tea.Msg
}

func newFilePicker(title string, items []fileItem, onPicked func(fileItem) tea.Msg) *filePicker {
	inp := textinput.New()
	inp.Placeholder = "filter"
	inp.Prompt = "> "
	inp.Focus()
	litems := make([]list.Item, 0, len(items))
	for _, it := range items {
		litems = append(litems, it)
	}
	lst := list.New(litems, list.NewDefaultDelegate(), 40, 12)
	lst.SetShowStatusBar(false)
	lst.SetFilteringEnabled(false)
	lst.SetShowHelp(false)
	lst.SetShowTitle(false)
	return &filePicker{title: title, input: inp, list: lst, all: items, onPicked: onPicked}
}

// Update feeds one key to the picker. done reports the picker finished;
// the cmd carries the selection message when one was made.
func (p *filePicker) Update(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "enter" {
		if it, ok := p.list.SelectedItem().(fileItem); ok && p.onPicked != nil {
			return func() tea.Msg { return p.onPicked(it) }, true
		}
		return nil, true
	}
	var inputCmd tea.Cmd
	p.input, inputCmd = p.input.Update(msg)
	p.refilter()
	var listCmd tea.Cmd
	p.list, listCmd = p.list.Update(msg)
	return tea.Batch(inputCmd, listCmd), false
}

func (p *filePicker) refilter() {
	q := strings.ToLower(strings.TrimSpace(p.input.Value()))
	items := make([]list.Item, 0, len(p.all))
	for _, it := range p.all {
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) {
			items = append(items, it)
		}
	}
	_ = p.list.SetItems(items)
}

func (p *filePicker) View(width, height int) string {
	p.list.SetWidth(width)
	p.list.SetHeight(max(6, height-5))
	return titleStyle.Render(p.title) + "\n" + p.input.View() + "\n" + p.list.View() + "\n" + helpStyle.Render("[enter] Run  [esc] Back")
}

// exportItems lists the .txt chat exports in dir, newest first.
func exportItems(dir string) ([]fileItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read exports dir: %w", err)
	}
	var items []fileItem
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, fileItem{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Info: fmt.Sprintf("%s  %d KB", info.ModTime().Format("2006-01-02 15:04"), (info.Size()+1023)/1024),
			mod:  info.ModTime(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })
	return items, nil
}
