package ppu

// beginDraw latches the pixel pipeline's starting position the instant
// mode 3 begins: the background fetcher's map/tile/fine-Y position and
// the SCX fine-scroll discard. It also seeds drawStall with the fixed
// fetcher warm-up latency that makes even an SCX=0 scanline take 172
// dots rather than a bare 160 (spec.md §4.3, §D.8 scenario S5).
//
// Generalizes the teacher's RenderBGScanlineUsingFetcher helper
// (previously only exercised by tests) into the live renderer's setup
// step; stepDraw is the part the teacher never had at all.
func (p *PPU) beginDraw() {
	ly := p.ly
	p.drawX = 0
	p.drawQueue.Clear()
	p.drawTileData8000 = p.lcdc&0x10 != 0

	p.drawBGMapBase = 0x9800
	if p.lcdc&0x08 != 0 {
		p.drawBGMapBase = 0x9C00
	}
	bgY := uint16(ly) + uint16(p.scy)
	p.drawBGFineY = byte(bgY & 7)
	p.drawBGMapY = (bgY >> 3) & 31

	startX := uint16(p.scx)
	p.drawBGTileX = int((startX >> 3) & 31)
	discard := int(startX & 7)

	p.fetchNextBGTile()
	for i := 0; i < discard; i++ {
		p.drawQueue.Pop()
	}

	p.drawWinActive = false
	p.drawSpritePenalty = map[int]bool{}
	p.drawStall = 12 + discard
}

// stepDraw advances the pixel pipeline by one dot, producing at most
// one framebuffer pixel — the real per-dot accounting spec.md §4.3
// describes. BGP/OBP0/OBP1 (via resolveColor) and the sprite/window
// state that gates them are all read live at the dot a column is
// actually emitted, so a mid-scanline register write affects only the
// pixels not yet drawn (the Mealybug m3_bgp_change scenario this
// exists to pass).
func (p *PPU) stepDraw() {
	if p.drawStall > 0 {
		p.drawStall--
		return
	}
	if p.drawX >= 160 {
		return
	}

	ly := p.ly
	if !p.drawWinActive && p.windowVisibleOnLine(ly) {
		trigger := int(p.wx) - 7
		if trigger < 0 {
			trigger = 0
		}
		if p.drawX == trigger {
			p.activateWindow()
			return
		}
	}

	if p.drawQueue.Len() == 0 {
		if p.drawWinActive {
			p.fetchNextWinTile()
		} else {
			p.fetchNextBGTile()
		}
	}

	spritesEnabled := p.lcdc&0x02 != 0
	var spr spriteEntry
	var spriteCI byte
	haveSprite := false
	if spritesEnabled {
		spriteCI, spr, haveSprite = p.spritePixel(p.drawX)
		if haveSprite {
			tileCol := spr.x / 8
			if !p.drawSpritePenalty[tileCol] {
				p.drawSpritePenalty[tileCol] = true
				p.drawStall = 6
				return
			}
		}
	}

	px, _ := p.drawQueue.Pop()
	bg := byte(0)
	if p.lcdc&0x01 != 0 {
		bg = px
	}

	out := bg
	if haveSprite && !(spr.bgPriority() && bg != 0) {
		out = spriteCI | 0x10
		if spr.palette1() {
			out |= 0x20
		}
	}
	p.fb[int(ly)*160+p.drawX] = p.resolveColor(out)
	p.drawX++
}

// activateWindow switches the pipeline from the background tilemap to
// the window tilemap at the dot the current column crosses WX-7,
// clearing and refetching the FIFO and charging the fixed 6-dot
// activation penalty (spec.md §4.3). The internal window line counter
// advances exactly once per line the window actually draws.
func (p *PPU) activateWindow() {
	p.drawWinActive = true
	p.windowHit = true
	p.drawQueue.Clear()
	p.drawWinMapBase = 0x9800
	if p.lcdc&0x40 != 0 {
		p.drawWinMapBase = 0x9C00
	}
	p.drawWinMapY = (uint16(p.wline) >> 3) & 31
	p.drawWinFineY = byte(p.wline) & 7
	p.drawWinTileX = 0
	p.fetchNextWinTile()
	p.wline++
	p.drawStall = 6
}

func (p *PPU) fetchNextBGTile() {
	f := bgFetcher{mem: p}
	f.Configure(p.drawBGMapBase, p.drawTileData8000, p.drawBGMapBase+p.drawBGMapY*32+uint16(p.drawBGTileX), p.drawBGFineY)
	f.Fetch(&p.drawQueue)
	p.drawBGTileX = (p.drawBGTileX + 1) & 31
}

func (p *PPU) fetchNextWinTile() {
	f := bgFetcher{mem: p}
	f.Configure(p.drawWinMapBase, p.drawTileData8000, p.drawWinMapBase+p.drawWinMapY*32+uint16(p.drawWinTileX), p.drawWinFineY)
	f.Fetch(&p.drawQueue)
	p.drawWinTileX = (p.drawWinTileX + 1) & 31
}

// resolveColor maps a tagged pixel value (bits 0-1 color index, bit 4
// sprite flag, bit 5 OBP1 select) through the correct palette
// register, read live at the moment the pixel is produced.
func (p *PPU) resolveColor(v byte) byte {
	ci := v & 0x03
	if v&0x10 != 0 {
		pal := p.obp0
		if v&0x20 != 0 {
			pal = p.obp1
		}
		return (pal >> (ci * 2)) & 0x03
	}
	return (p.bgp >> (ci * 2)) & 0x03
}

func (p *PPU) windowVisibleOnLine(ly byte) bool {
	if p.lcdc&0x20 == 0 { // window disabled
		return false
	}
	if ly < p.wy {
		return false
	}
	return int(p.wx)-7 < 160
}
