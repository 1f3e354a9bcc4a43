// Package ddr4page implements the single piece of address arithmetic
// shared by the firmware's page-address shadow and the programmer
// client's mirror of it: which of DDR4's two 256-byte SPA pages a flat
// offset belongs to (offset < 256 is page 0; 256 <= offset < 512 is
// page 1).
package ddr4page

// PageOf returns the SPA page (0 or 1) that offset belongs to.
func PageOf(offset int) int {
	if offset < 256 {
		return 0
	}
	return 1
}

// Adjust reconciles shadow (the last page broadcast, or -1 if unknown)
// with the page offset requires. It returns the page to use and whether
// a new SPA0/SPA1 broadcast is needed; when needed, the caller must
// perform the broadcast and then call Applied to update its shadow.
func Adjust(shadow int, offset int) (page int, broadcastNeeded bool) {
	page = PageOf(offset)
	return page, shadow != page
}

// Applied returns the shadow value after a broadcast of page has
// completed - this is the only place that mutates a shadow value, so
// every call site stays consistent: adjusting offset o always leaves
// the shadow equal to o>>8.
func Applied(page int) int {
	return page
}
