package engine

import "testing"

func TestFilterGraphBuild(t *testing.T) {
	got := newFilterGraph().Overlay(0, 0).PaletteGIF().Build()
	want := "[0:v][1:v]overlay=0:0,split[a][b];[b]palettegen[p];[a][p]paletteuse"
	if got != want {
		t.Fatalf("graph = %q, want %q", got, want)
	}
}

func TestFilterGraphCustomSkipsEmpty(t *testing.T) {
	got := newFilterGraph().Overlay(0, 0).Custom("  ").Custom("fps=15").Build()
	want := "[0:v][1:v]overlay=0:0,fps=15"
	if got != want {
		t.Fatalf("graph = %q, want %q", got, want)
	}
}
