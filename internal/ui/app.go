// Package ui is the thin ebiten frontend that exercises gb.Core's
// public surface: window creation, a scaled framebuffer blit through a
// 4-shade palette, keyboard-to-joypad key-state polling, and an audio pump
// reading from the APU's stereo stream. Trimmed and adapted from the
// teacher's internal/ui/{ebitenapp,audio,menu_draw,menu_update,config}.go,
// which additionally carried a ROM browser, save-state slots, a
// settings menu, and shell-overlay skinning — all dropped as editor
// chrome outside this package's scope (see DESIGN.md).
package ui

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/sm83lab/dotmatrix/internal/gb"
	"github.com/sm83lab/dotmatrix/internal/joypad"
)

// gbFPS is the DMG's native frame rate: 4194304 Hz / 70224 T-cycles per frame.
const gbFPS = 4194304.0 / 70224.0

// App is an ebiten.Game that drives a gb.Core and renders its output.
type App struct {
	cfg  Config
	core *gb.Core
	tex  *ebiten.Image

	paused bool
	fast   bool

	lastTime time.Time
	frameAcc float64

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioMuted  bool

	toastMsg   string
	toastUntil time.Time
}

// keymap pairs a joypad button with the ebiten key that drives it.
var keymap = []struct {
	key ebiten.Key
	btn joypad.Button
}{
	{ebiten.KeyRight, joypad.Right},
	{ebiten.KeyLeft, joypad.Left},
	{ebiten.KeyUp, joypad.Up},
	{ebiten.KeyDown, joypad.Down},
	{ebiten.KeyZ, joypad.A},
	{ebiten.KeyX, joypad.B},
	{ebiten.KeyEnter, joypad.Start},
	{ebiten.KeyShiftRight, joypad.Select},
}

// NewApp wires an App around an already-constructed core. The caller
// is expected to have Inserted a cartridge before the first Update.
func NewApp(cfg Config, core *gb.Core) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, core: core, lastTime: time.Now()}
	a.audioCtx = audio.NewContext(48000)
	a.audioMuted = true
	return a
}

// Run starts the ebiten game loop.
func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if a.audioPlayer == nil {
		src := &apuStream{a: a.core.APU(), mono: !a.cfg.AudioStereo, muted: &a.audioMuted}
		if p, err := a.audioCtx.NewPlayer(src); err == nil {
			a.audioPlayer = p
			a.audioPlayer.SetBufferSize(time.Duration(a.cfg.AudioBufferMs) * time.Millisecond)
			a.audioPlayer.Play()
		}
	}

	jp := a.core.Joypad()
	for _, m := range keymap {
		jp.Send(m.btn, ebiten.IsKeyPressed(m.key))
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.core.Reset()
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.core.RunFrame()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}

	muted := a.paused
	if muted != a.audioMuted {
		a.audioMuted = muted
	}

	if a.core.IsFaulted() {
		a.toast(fmt.Sprintf("faulted: %v", a.core.FaultErr()))
		return nil
	}

	if !a.paused {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
		a.lastTime = now
		speed := 1.0
		if a.fast {
			speed = 4.0
		}
		a.frameAcc += dt * gbFPS * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 8 {
			a.core.RunFrame()
			a.frameAcc -= 1.0
			steps++
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	pix := ExpandRGBA(a.core.Video().Framebuffer(), a.cfg.Palette, a.cartTitle())
	a.tex.WritePixels(pix)
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 4)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) cartTitle() string {
	if h := a.core.Bus.Cart.Header(); h != nil {
		return h.Title
	}
	return ""
}

func (a *App) saveScreenshot() error {
	pix := ExpandRGBA(a.core.Video().Framebuffer(), a.cfg.Palette, a.cartTitle())
	return writeScreenshotPNG(pix)
}
