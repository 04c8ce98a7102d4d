//go:build linux

package capture

import (
	"image"
	"testing"
)

func TestParseWmctrl(t *testing.T) {
	out := []byte("0x03a00007  0 4242   host Some Game - Chapter 1\n" +
		"garbage line\n" +
		"0x01200003 -1 1001   host Desktop\n")

	got := parseWmctrl(out)
	if len(got) != 2 {
		t.Fatalf("parseWmctrl() = %v, want 2 targets", got)
	}
	if got[0].ID != 0x03a00007 || got[0].PID != 4242 || got[0].Title != "Some Game - Chapter 1" {
		t.Errorf("got[0] = %+v", got[0])
	}
}

func TestParseXwininfo(t *testing.T) {
	out := []byte(`
xwininfo: Window id: 0x3a00007 "Some Game"

  Absolute upper-left X:  100
  Absolute upper-left Y:  50
  Relative upper-left X:  0
  Width: 800
  Height: 600
`)
	r, err := parseXwininfo(out)
	if err != nil {
		t.Fatalf("parseXwininfo() error = %v", err)
	}
	if r != image.Rect(100, 50, 900, 650) {
		t.Errorf("rect = %v", r)
	}

	if _, err := parseXwininfo([]byte("nothing")); err == nil {
		t.Error("missing geometry should error")
	}
}
