package outline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/vanderheijden86/lazytree/pkg/model"
	"github.com/vanderheijden86/lazytree/pkg/session"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

func demoTree() model.TreeNode {
	node := func(id, name string, level model.Level, children ...model.TreeNode) model.TreeNode {
		return model.TreeNode{ID: id, Name: name, Level: level, IsLoaded: true, Children: children}
	}
	return node("node-1", "Application", "A",
		node("node-2", "Services", "B",
			node("node-3", "Auth Service", "C",
				node("node-4", "OAuth Provider", "D"),
			),
			node("node-5", "API Gateway", "C"),
		),
		node("node-6", "Components", "B",
			node("node-7", "Button", "C"),
			node("node-8", "Modal", "C"),
		),
	)
}

func TestRenderTree_Plain(t *testing.T) {
	got := RenderTree(demoTree(), Options{})
	want := strings.Join([]string{
		"▾ [A] Application",
		"├── ▾ [B] Services",
		"│   ├── ▾ [C] Auth Service",
		"│   │   └── • [D] OAuth Provider",
		"│   └── • [C] API Gateway",
		"└── ▾ [B] Components",
		"    ├── • [C] Button",
		"    └── • [C] Modal",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outline (-want +got):\n%s", diff)
	}
}

func TestRenderTree_UnloadedAndLoading(t *testing.T) {
	root := model.TreeNode{
		ID: "r", Name: "Root", Level: "A", IsLoaded: true,
		Children: []model.TreeNode{
			{ID: "a", Name: "Lazy", Level: "B"},
			{ID: "b", Name: "Busy", Level: "B", IsLoading: true},
			{ID: "c", Name: "Untagged"},
		},
	}
	got := RenderTree(root, Options{ShowIDs: true})
	want := strings.Join([]string{
		"▾ [A] Root r",
		"├── ▸ [B] Lazy a",
		"├── ◌ [B] Busy b loading",
		"└── ▸ [-] Untagged c",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outline (-want +got):\n%s", diff)
	}
}

func TestLine_TruncatesToWidth(t *testing.T) {
	row := session.Row{ID: "x", Name: "A rather long node name that will not fit", Level: "A", IsLoaded: true}
	got := Line(row, Options{Width: 24})
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if !strings.HasPrefix(got, "• [A] A rather") {
		t.Errorf("unexpected line %q", got)
	}

	short := Line(session.Row{ID: "y", Name: "Short", Level: "A", IsLoaded: true}, Options{Width: 24})
	if short != "• [A] Short" {
		t.Errorf("short name changed: %q", short)
	}
}

func TestLine_NarrowWidthKeepsMinimumName(t *testing.T) {
	row := session.Row{Depth: 3, Guides: []bool{true, true}, Last: true, Name: "Abcdefghijklmnop", Level: "D", IsLoaded: true}
	got := Line(row, Options{Width: 10})
	if !strings.Contains(got, "Abcdefg…") {
		t.Errorf("name truncated below the minimum: %q", got)
	}
}

func TestLine_StyledKeepsText(t *testing.T) {
	row := session.Row{ID: "x", Name: "Styled", Level: "C", IsLoaded: true, Depth: 1, Last: true}
	got := Line(row, Options{Styled: true, ShowIDs: true})
	for _, part := range []string{"└── ", "[C]", "Styled", "x"} {
		if !strings.Contains(got, part) {
			t.Errorf("styled line %q missing %q", got, part)
		}
	}
}

func TestRender_SessionRows(t *testing.T) {
	rows := session.Flatten(demoTree(), func(id string) bool { return id == "node-1" })
	got := Render(rows, Options{})
	want := "▾ [A] Application\n├── ▸ [B] Services\n└── ▸ [B] Components\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteJSON(t *testing.T) {
	snap := tree.Snapshot{Root: demoTree(), Generation: 7}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, snap); err != nil {
		t.Fatal(err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if doc.Generation != 7 || doc.Nodes != 8 {
		t.Errorf("generation=%d nodes=%d", doc.Generation, doc.Nodes)
	}
	if diff := cmp.Diff(snap.Root, doc.Root); diff != "" {
		t.Errorf("root round trip (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), `"isLoaded": true`) {
		t.Errorf("expected indented camelCase fields:\n%s", buf.String())
	}
}
