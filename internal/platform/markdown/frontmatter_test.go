package markdown

import (
	"strings"
	"testing"
)

type noteMeta struct {
	ID     string   `yaml:"id"`
	Phase  string   `yaml:"phase"`
	Images []string `yaml:"images"`
}

func TestRenderNoteThenSplit(t *testing.T) {
	t.Parallel()

	in := noteMeta{ID: "s-1", Phase: "complete", Images: []string{"https://img/1", "https://img/2"}}
	content, err := RenderNote(in, "# Session s-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(content, "---\nid: s-1\n") {
		t.Fatalf("unexpected header: %q", content)
	}

	var out noteMeta
	body, err := SplitFrontmatter(content, &out)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if out.ID != "s-1" || out.Phase != "complete" || len(out.Images) != 2 {
		t.Fatalf("unexpected meta: %+v", out)
	}
	if body != "# Session s-1\n" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSplitFrontmatterWithoutHeader(t *testing.T) {
	t.Parallel()

	var meta noteMeta
	body, err := SplitFrontmatter("plain text", &meta)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if body != "plain text" || meta.ID != "" {
		t.Fatalf("unexpected split result: %q %+v", body, meta)
	}
}

func TestSplitFrontmatterMissingClose(t *testing.T) {
	t.Parallel()

	var meta noteMeta
	if _, err := SplitFrontmatter("---\nid: x\n", &meta); err == nil {
		t.Fatalf("expected error for unterminated header")
	}
}
