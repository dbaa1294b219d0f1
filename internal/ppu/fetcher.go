package ppu

// fifo is a ring buffer of 2-bit color indices, ported from the
// teacher's unwired fetcher experiment.
type fifo struct {
	buf  [16]byte
	head int
	tail int
	size int
}

func (q *fifo) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *fifo) Len() int { return q.size }

func (q *fifo) Push(ci byte) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = ci & 0x03
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

func (q *fifo) Pop() (byte, bool) {
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// Snapshot returns the FIFO's live contents in pop order, for save
// states taken mid-scanline.
func (q *fifo) Snapshot() []byte {
	out := make([]byte, 0, q.size)
	idx := q.head
	for i := 0; i < q.size; i++ {
		out = append(out, q.buf[idx])
		idx = (idx + 1) % len(q.buf)
	}
	return out
}

// Restore replaces the FIFO's contents with data, in pop order.
func (q *fifo) Restore(data []byte) {
	q.Clear()
	for _, v := range data {
		q.Push(v)
	}
}

// bgFetcher pulls one 8-pixel tile row into the FIFO, generalizing the
// teacher's single-shot bgFetcher into one reused for both background
// and window tilemaps (Configure picks the map/addressing each call).
type bgFetcher struct {
	mem           *PPU
	tileData8000  bool
	mapBase       uint16
	tileIndexAddr uint16
	fineY         byte
}

func (f *bgFetcher) Configure(mapBase uint16, tileData8000 bool, tileIndexAddr uint16, fineY byte) {
	f.mapBase, f.tileData8000, f.tileIndexAddr, f.fineY = mapBase, tileData8000, tileIndexAddr, fineY&7
}

// Fetch reads the tile number and its row bitplanes and pushes 8 color
// indices (MSB-first, matching hardware pixel order) into q.
func (f *bgFetcher) Fetch(q *fifo) {
	tileNum := f.mem.vramRead(f.tileIndexAddr)
	var base uint16
	if f.tileData8000 {
		base = 0x8000 + uint16(tileNum)*16 + uint16(f.fineY)*2
	} else {
		base = 0x9000 + uint16(int8(tileNum))*16 + uint16(f.fineY)*2
	}
	lo := f.mem.vramRead(base)
	hi := f.mem.vramRead(base + 1)
	for px := 0; px < 8; px++ {
		bit := 7 - byte(px)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		q.Push(ci)
	}
}

// vramRead is an internal, unmediated VRAM access used by the fetcher —
// the pipeline runs as part of PPU-internal bookkeeping at the start of
// Draw, not through the CPU-visibility-gated CPURead path.
func (p *PPU) vramRead(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// spriteEntry is one OAM-scan result for the current scanline.
type spriteEntry struct {
	oamIndex int
	x        int // screen X of the sprite's left edge (OAM X - 8)
	y        int // screen Y of the sprite's top edge (OAM Y - 16)
	tile     byte
	attr     byte
}

func (s spriteEntry) xFlip() bool    { return s.attr&0x20 != 0 }
func (s spriteEntry) yFlip() bool    { return s.attr&0x40 != 0 }
func (s spriteEntry) bgPriority() bool { return s.attr&0x80 != 0 }
func (s spriteEntry) palette1() bool  { return s.attr&0x10 != 0 }

// scanSprites populates p.sprites with up to 10 sprites intersecting
// the current scanline, in OAM order — spec.md §4.3's sprite
// evaluation, absent from the teacher's PPU entirely.
func (p *PPU) scanSprites() {
	p.sprites = p.sprites[:0]
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	ly := int(p.ly)
	for i := 0; i < 40 && len(p.sprites) < 10; i++ {
		base := i * 4
		y := int(p.oam[base]) - 16
		if ly < y || ly >= y+height {
			continue
		}
		x := int(p.oam[base+1]) - 8
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		p.sprites = append(p.sprites, spriteEntry{oamIndex: i, x: x, y: y, tile: tile, attr: attr})
	}
}

// spritePixel returns the color index (0 = transparent) and the
// winning sprite's attributes for screen column x, applying OAM-index
// priority among overlapping opaque sprites (lower index/left-most X
// wins, matching real hardware's DMG priority rule).
func (p *PPU) spritePixel(x int) (byte, spriteEntry, bool) {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	var best spriteEntry
	var bestCI byte
	found := false
	for _, s := range p.sprites {
		if x < s.x || x >= s.x+8 {
			continue
		}
		row := int(p.ly) - s.y
		if s.yFlip() {
			row = height - 1 - row
		}
		tile := s.tile
		if height == 16 {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}
		col := x - s.x
		if !s.xFlip() {
			col = 7 - col
		}
		base := 0x8000 + uint16(tile)*16 + uint16(row)*2
		lo := p.vramRead(base)
		hi := p.vramRead(base + 1)
		bit := byte(col)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		if ci == 0 {
			continue // transparent, doesn't occlude lower-priority sprites
		}
		if !found || s.x < best.x || (s.x == best.x && s.oamIndex < best.oamIndex) {
			best, bestCI, found = s, ci, true
		}
	}
	return bestCI, best, found
}
