package world

import (
	"errors"
	"testing"
)

func TestNewSectorTableRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, -2048, 100, 3000} {
		if _, err := NewSectorTable(4096, 4096, size); !errors.Is(err, ErrSectorSize) {
			t.Errorf("size %d: got %v, want ErrSectorSize", size, err)
		}
	}
	if _, err := NewSectorTable(0, 10, 64); !errors.Is(err, ErrZoneSize) {
		t.Errorf("zero width: got %v, want ErrZoneSize", err)
	}
}

func TestSectorTableGrid(t *testing.T) {
	tab, err := NewSectorTable(4096, 4096, 2048)
	if err != nil {
		t.Fatal(err)
	}
	cols, rows := tab.GridSize()
	if cols != 2 || rows != 2 || tab.Len() != 4 {
		t.Fatalf("grid = %dx%d (%d sectors), want 2x2", cols, rows, tab.Len())
	}
	if s := tab.SectorOf(2047, 2047); s.Col() != 0 || s.Row() != 0 {
		t.Errorf("SectorOf(2047,2047) = (%d,%d)", s.Col(), s.Row())
	}
	if s := tab.SectorOf(2048, 0); s.Col() != 1 || s.Row() != 0 {
		t.Errorf("SectorOf(2048,0) = (%d,%d)", s.Col(), s.Row())
	}
	if s := tab.SectorOfSafe(-10, 99999); s.Col() != 0 || s.Row() != 1 {
		t.Errorf("SectorOfSafe(-10,99999) = (%d,%d)", s.Col(), s.Row())
	}
	if s := tab.SectorOfSafe(4096, 4096); s != tab.At(1, 1) {
		t.Errorf("SectorOfSafe clamps to the last sector")
	}
	if tab.At(2, 0) != nil || tab.At(-1, 0) != nil {
		t.Errorf("At outside the grid should be nil")
	}
}

func TestSectorTableNeighbours(t *testing.T) {
	tab, _ := NewSectorTable(3*64, 2*64, 64)
	check := func(tab *SectorTable) {
		t.Helper()
		cols, rows := tab.GridSize()
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				s := tab.At(c, r)
				if s.Left() != tab.At(c-1, r) || s.Right() != tab.At(c+1, r) ||
					s.Top() != tab.At(c, r-1) || s.Bottom() != tab.At(c, r+1) {
					t.Errorf("sector (%d,%d) has wrong neighbours", c, r)
				}
				if s.Neighbours() != ([4]*Sector{s.Left(), s.Right(), s.Top(), s.Bottom()}) {
					t.Errorf("sector (%d,%d) Neighbours disagrees with links", c, r)
				}
				if s.Left() != nil && s.Left().Right() != s {
					t.Errorf("sector (%d,%d) left/right links disagree", c, r)
				}
				if s.Top() != nil && s.Top().Bottom() != s {
					t.Errorf("sector (%d,%d) top/bottom links disagree", c, r)
				}
			}
		}
	}
	check(tab)
	tab.Resize(5*64, 4*64)
	check(tab)
}

func TestSectorTableResizeGrowsOnly(t *testing.T) {
	tab, _ := NewSectorTable(128, 128, 64)
	first := tab.Sectors()
	ids := make(map[*Sector]int, len(first))
	for _, s := range first {
		ids[s] = s.Index()
	}

	if tab.Resize(0, 500) {
		t.Error("zero width resize should be a no-op")
	}
	if tab.Resize(64, 64) {
		t.Error("shrinking resize should not add sectors")
	}
	if w, h := tab.Dims(); w != 128 || h != 128 {
		t.Errorf("dims after shrink request = %dx%d", w, h)
	}
	if tab.Resize(100, 120) {
		t.Error("resize within capacity should not add sectors")
	}

	if !tab.Resize(256, 192) {
		t.Fatal("growing resize reported no new sectors")
	}
	if w, h := tab.Dims(); w != 256 || h != 192 {
		t.Errorf("dims = %dx%d, want 256x192", w, h)
	}
	if tab.Len() != 12 {
		t.Fatalf("sectors = %d, want 12", tab.Len())
	}
	for s, idx := range ids {
		if tab.At(s.Col(), s.Row()) != s {
			t.Errorf("sector (%d,%d) lost identity", s.Col(), s.Row())
		}
		if s.Index() != idx {
			t.Errorf("sector (%d,%d) index changed %d -> %d", s.Col(), s.Row(), idx, s.Index())
		}
	}
	for i, s := range tab.Sectors() {
		if s.Index() != i {
			t.Errorf("Sectors()[%d].Index() = %d", i, s.Index())
		}
	}
}

func TestSectorTableSpan(t *testing.T) {
	tab, _ := NewSectorTable(4096, 4096, 2048)
	c0, r0, c1, r1, ok := tab.span(Rect{X: 2047, Y: 2047, W: 2, H: 2})
	if !ok || c0 != 0 || r0 != 0 || c1 != 1 || r1 != 1 {
		t.Errorf("span = %d,%d..%d,%d ok=%v", c0, r0, c1, r1, ok)
	}
	if _, _, _, _, ok := tab.span(Rect{X: 5000, Y: 0, W: 10, H: 10}); ok {
		t.Error("span outside the zone should not be ok")
	}
}
