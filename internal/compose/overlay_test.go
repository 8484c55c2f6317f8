package compose

import (
	"strings"
	"testing"

	"reelsmith/internal/config"
)

func TestResolveWindows(t *testing.T) {
	overlays := []config.Overlay{
		{Text: "hook", Start: 0, End: 3, Anchor: config.AnchorStart},
		{Text: "cta", Start: 0, End: 4, Anchor: config.AnchorEnd},
		{Text: "late", Start: 30, End: 40, Anchor: config.AnchorStart},
		{Text: "spill", Start: 18, End: 25, Anchor: config.AnchorStart},
	}
	windows, dropped := ResolveWindows(overlays, 20)
	if len(dropped) != 1 || dropped[0].Text != "late" {
		t.Fatalf("expected late overlay dropped, got %+v", dropped)
	}
	want := map[string][2]float64{
		"hook":  {0, 3},
		"cta":   {16, 20},
		"spill": {18, 20},
	}
	if len(windows) != len(want) {
		t.Fatalf("unexpected windows: %+v", windows)
	}
	for _, w := range windows {
		exp := want[w.Overlay.Text]
		if w.Start != exp[0] || w.End != exp[1] {
			t.Errorf("%s: got [%v,%v] want %v", w.Overlay.Text, w.Start, w.End, exp)
		}
	}
}

func TestDrawtextChainEscapesPaths(t *testing.T) {
	windows := []Window{{
		Overlay: config.Overlay{Text: "x", FontSize: 40, FontColor: "white", X: "max(0,(w-text_w)/2)", Y: "80"},
		Start:   1,
		End:     2,
	}}
	chain := drawtextChain("/runs/a:b", "/fonts/Bold.ttf", windows)
	if !strings.HasPrefix(chain, `drawtext=textfile=/runs/a\\:b/overlay_0.txt:fontfile=/fonts/Bold.ttf:`) {
		t.Fatalf("unexpected chain prefix: %s", chain)
	}
	if !strings.Contains(chain, "x='max(0,(w-text_w)/2)'") {
		t.Fatalf("expression not quoted: %s", chain)
	}
	if drawtextChain("/w", "", nil) != "" {
		t.Fatal("expected empty chain without overlays")
	}
}
