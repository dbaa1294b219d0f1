package ui

import "image/color"

// shades is a 4-entry palette indexed by the 2-bit color code the PPU
// emits per spec.md §6.4; index 0 is the lightest shade.
type shades [4]color.RGBA

var palettes = []shades{
	// 0: classic DMG green-gray, the default.
	{
		{0xE0, 0xF0, 0xE7, 0xFF},
		{0x8B, 0xAC, 0x0F, 0xFF},
		{0x30, 0x62, 0x30, 0xFF},
		{0x0F, 0x38, 0x0F, 0xFF},
	},
	// 1: plain grayscale, for titles with no better-known match.
	{
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xAA, 0xAA, 0xAA, 0xFF},
		{0x55, 0x55, 0x55, 0xFF},
		{0x00, 0x00, 0x00, 0xFF},
	},
	// 2: a warm amber, reminiscent of the Game Boy Pocket's reflective screen.
	{
		{0xF5, 0xE6, 0xC8, 0xFF},
		{0xC8, 0xA0, 0x5A, 0xFF},
		{0x7A, 0x5C, 0x2E, 0xFF},
		{0x2E, 0x20, 0x10, 0xFF},
	},
	// 3: blue-tinted, a nod to the original Game Boy Color's startup menu.
	{
		{0xE0, 0xE8, 0xF8, 0xFF},
		{0x98, 0xA8, 0xE0, 0xFF},
		{0x48, 0x58, 0xA0, 0xFF},
		{0x10, 0x18, 0x48, 0xFF},
	},
}

// titlePalette maps a handful of known cartridge titles to a compat
// palette index, mirroring (in spirit, not data) the title-hash lookup
// the real CGB boot ROM performs for DMG-mode carts. Titles not listed
// fall back to cfg.Palette.
var titlePalette = map[string]int{
	"TETRIS":    1,
	"DR MARIO":  3,
	"SUPER MARIOLAND": 2,
}

// paletteFor resolves the shade table to render with: an explicit
// non-zero cfg.Palette wins, then a title match, then the default.
func paletteFor(cfgPalette int, title string) shades {
	if cfgPalette > 0 && cfgPalette < len(palettes) {
		return palettes[cfgPalette]
	}
	if id, ok := titlePalette[title]; ok {
		return palettes[id]
	}
	return palettes[0]
}

// ExpandRGBA expands a 160x144 buffer of 2-bit DMG color codes into
// interleaved RGBA8 bytes through the palette selected by paletteIdx
// and cartTitle, for callers (headless CLI tools, screenshots) that
// need the same shade table the windowed frontend renders with.
func ExpandRGBA(fb *[160 * 144]byte, paletteIdx int, cartTitle string) []byte {
	pal := paletteFor(paletteIdx, cartTitle)
	out := make([]byte, len(fb)*4)
	for i, code := range fb {
		c := pal[code&3]
		out[i*4+0] = c.R
		out[i*4+1] = c.G
		out[i*4+2] = c.B
		out[i*4+3] = c.A
	}
	return out
}
