package ddr4page

import "testing"

func TestPageOfBoundary(t *testing.T) {
	cases := []struct {
		offset, want int
	}{
		{0, 0}, {0xFF, 0}, {255, 0},
		{256, 1}, {0x100, 1}, {511, 1},
	}
	for _, c := range cases {
		if got := PageOf(c.offset); got != c.want {
			t.Errorf("PageOf(%d) = %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestAdjustInvariant(t *testing.T) {
	for offset := 0; offset < 512; offset++ {
		page, _ := Adjust(-1, offset)
		shadow := Applied(page)
		if shadow != offset>>8 {
			t.Fatalf("offset %d: shadow %d != offset>>8 %d", offset, shadow, offset>>8)
		}
	}
}

func TestAdjustNoBroadcastWhenSamePage(t *testing.T) {
	_, broadcast := Adjust(0, 0xFE)
	if broadcast {
		t.Error("page 0 read at offset 0xFE should not require a broadcast")
	}
	_, broadcast = Adjust(0, 0x100)
	if !broadcast {
		t.Error("offset 0x100 while shadow=0 should require a broadcast to page 1")
	}
}
