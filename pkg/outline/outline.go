// Package outline prints tree snapshots as text: an indented outline with
// branch glyphs for terminals and logs, and a JSON dump for tooling.
package outline

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/session"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

// Options controls outline rendering.
type Options struct {
	// Width truncates names so every line fits; 0 disables truncation.
	Width int
	// Styled colours level tags and glyphs with lipgloss.
	Styled bool
	// ShowIDs appends each node id.
	ShowIDs bool
}

const (
	glyphBranch = "├── "
	glyphLast   = "└── "
	glyphPipe   = "│   "
	glyphBlank  = "    "

	minNameWidth = 8
)

// levelColors maps the default level tags to ANSI 256 colours. Unknown tags
// fall back to the muted colour.
var levelColors = map[model.Level]lipgloss.Color{
	"A": lipgloss.Color("33"),
	"B": lipgloss.Color("37"),
	"C": lipgloss.Color("71"),
	"D": lipgloss.Color("178"),
	"E": lipgloss.Color("208"),
	"F": lipgloss.Color("167"),
	"G": lipgloss.Color("134"),
	"H": lipgloss.Color("98"),
}

var (
	mutedColor = lipgloss.Color("245")
	guideStyle = lipgloss.NewStyle().Foreground(mutedColor)
	idStyle    = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	stateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
)

// Prefix returns the guide and branch glyphs drawn before a row.
func Prefix(r session.Row) string {
	if r.Depth == 0 {
		return ""
	}
	var sb strings.Builder
	for _, more := range r.Guides {
		if more {
			sb.WriteString(glyphPipe)
		} else {
			sb.WriteString(glyphBlank)
		}
	}
	if r.Last {
		sb.WriteString(glyphLast)
	} else {
		sb.WriteString(glyphBranch)
	}
	return sb.String()
}

// Indicator returns the expand glyph for a row.
func Indicator(r session.Row) string {
	switch {
	case r.IsLoading:
		return "◌"
	case !r.Expandable:
		return "•"
	case r.Expanded:
		return "▾"
	default:
		return "▸"
	}
}

// Line renders one row.
func Line(r session.Row, opts Options) string {
	prefix := Prefix(r)
	indicator := Indicator(r)
	tag := "[" + string(r.Level) + "]"
	if r.Level == "" {
		tag = "[-]"
	}
	var suffix string
	if opts.ShowIDs {
		suffix = " " + r.ID
	}
	var state string
	if r.IsLoading {
		state = " loading"
	}

	name := r.Name
	if opts.Width > 0 {
		fixed := runewidth.StringWidth(prefix+indicator+" "+tag+" ") +
			runewidth.StringWidth(suffix+state)
		avail := opts.Width - fixed
		if avail < minNameWidth {
			avail = minNameWidth
		}
		name = runewidth.Truncate(name, avail, "…")
	}

	if !opts.Styled {
		return prefix + indicator + " " + tag + " " + name + suffix + state
	}

	color, ok := levelColors[r.Level]
	if !ok {
		color = mutedColor
	}
	tagStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	var sb strings.Builder
	sb.WriteString(guideStyle.Render(prefix))
	sb.WriteString(guideStyle.Render(indicator))
	sb.WriteString(" ")
	sb.WriteString(tagStyle.Render(tag))
	sb.WriteString(" ")
	sb.WriteString(name)
	if suffix != "" {
		sb.WriteString(idStyle.Render(suffix))
	}
	if state != "" {
		sb.WriteString(stateStyle.Render(state))
	}
	return sb.String()
}

// Render renders rows one per line, each terminated by a newline.
func Render(rows []session.Row, opts Options) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(Line(r, opts))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderTree renders every node of root that is present in memory,
// regardless of any session's expansion state.
func RenderTree(root model.TreeNode, opts Options) string {
	open := make(map[string]bool)
	root.Walk(func(n model.TreeNode, _ int) bool {
		if n.HasChildren() {
			open[n.ID] = true
		}
		return true
	})
	return Render(session.Flatten(root, func(id string) bool { return open[id] }), opts)
}

// Document is the JSON shape of an exported snapshot.
type Document struct {
	Generation uint64         `json:"generation"`
	Nodes      int            `json:"nodes"`
	Root       model.TreeNode `json:"root"`
}

// WriteJSON writes snap as an indented Document.
func WriteJSON(w io.Writer, snap tree.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{
		Generation: snap.Generation,
		Nodes:      snap.Root.Count(),
		Root:       snap.Root,
	})
}
