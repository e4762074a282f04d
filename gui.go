package main

import (
	"image"
	"image/draw"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/asciibeats/dosbox-core/core"
	"github.com/asciibeats/dosbox-core/disk"
)

// runGUI drives the runner from a window's event loop: one RunFrame
// per 60Hz tick, with the window's keyboard and mouse state going in
// and the produced frame scaled onto the window. F4 swaps to the next
// disk image.
func runGUI(r *core.Runner, h *hooks) (int, error) {
	g := &gui{r: r, h: h}
	driver.Main(func(s screen.Screen) { g.run(s) })
	_, code := r.Exited()
	return code, nil
}

type gui struct {
	r *core.Runner
	h *hooks // non-nil in dev mode

	keys  []byte
	mouse core.MouseState

	buf screen.Buffer
	tex screen.Texture

	counter int // frame counter last uploaded
	gen     int // media generation last seen

	osd     string
	osdTill time.Time
}

func (g *gui) run(s screen.Screen) {
	scale := g.r.Options().Int("video_scale")
	if scale < 1 {
		scale = 1
	}
	w, err := s.NewWindow(&screen.NewWindowOptions{
		Title:  "dosbox-core",
		Width:  core.VideoWidth * scale,
		Height: core.VideoHeight * scale,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer w.Release()

	vsize := image.Point{core.VideoWidth, core.VideoHeight}
	if g.buf, err = s.NewBuffer(vsize); err != nil {
		log.Fatal(err)
	}
	defer g.buf.Release()
	if g.tex, err = s.NewTexture(vsize); err != nil {
		log.Fatal(err)
	}
	defer g.tex.Release()

	g.gen = g.r.MediaGeneration()

	type update struct{}
	done := make(chan bool)
	defer close(done)
	go func() {
		t := time.NewTicker(time.Second / 60)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				w.Send(update{})
			case <-done:
				return
			}
		}
	}()

	var sz size.Event
	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}

		case size.Event:
			sz = e
			if sz.WidthPx+sz.HeightPx == 0 {
				return
			}

		case key.Event:
			g.keyEvent(e)

		case mouse.Event:
			g.mouseEvent(e, sz)

		case update:
			if g.frame(w, sz) {
				return
			}

		case paint.Event:

		case error:
			log.Print(e)
		}
	}
}

func (g *gui) keyEvent(e key.Event) {
	if e.Direction != key.DirPress {
		return
	}
	switch e.Code {
	case key.CodeF4:
		g.swapDisk()
	case key.CodeReturnEnter:
		g.keys = append(g.keys, '\r')
	case key.CodeDeleteBackspace:
		g.keys = append(g.keys, 0x08)
	case key.CodeEscape:
		g.keys = append(g.keys, 0x1b)
	default:
		if e.Rune >= 0x20 && e.Rune < 0x7f {
			g.keys = append(g.keys, byte(e.Rune))
		}
	}
}

func (g *gui) mouseEvent(e mouse.Event, sz size.Event) {
	if sz.WidthPx > 0 && sz.HeightPx > 0 {
		g.mouse.X = clampInt16(int(float32(core.VideoWidth) / float32(sz.WidthPx) * e.X))
		g.mouse.Y = clampInt16(int(float32(core.VideoHeight) / float32(sz.HeightPx) * e.Y))
	}
	if e.Button >= 1 && e.Button <= 3 {
		g.mouse.Button[e.Button-1] = e.Direction == mouse.DirPress
	}
}

// frame runs one emulation step and paints the result. It reports
// whether the loop should end.
func (g *gui) frame(w screen.Window, sz size.Event) (exit bool) {
	run := true
	if g.h != nil {
		run = g.h.Tick()
		if g.h.Quit() {
			return true
		}
	}
	if !run {
		w.Scale(sz.Bounds(), g.tex, g.tex.Bounds(), draw.Src, nil)
		w.Publish()
		return false
	}

	f := g.r.RunFrame(&core.Input{Keys: g.keys, Mouse: g.mouse})
	g.keys = g.keys[:0]
	if g.h != nil {
		g.h.Report(f)
	} else if ok, _ := g.r.Exited(); ok {
		return true
	}
	g.notifyMediaChange()

	if g.osd != "" && time.Now().After(g.osdTill) {
		g.osd = ""
		g.counter = -1 // repaint without the overlay
	}
	if f.Counter != g.counter {
		g.counter = f.Counter
		copy(g.buf.RGBA().Pix, f.Pix)
		if g.osd != "" {
			drawOSD(g.buf.RGBA(), g.osd)
		}
		g.tex.Upload(image.Point{}, g.buf, g.buf.Bounds())
	}
	w.Scale(sz.Bounds(), g.tex, g.tex.Bounds(), draw.Src, nil)
	w.Publish()
	return false
}

// notifyMediaChange raises an on-screen notice when the mounted media
// changes, whether from F4 here or from the debugger.
func (g *gui) notifyMediaChange() {
	gen := g.r.MediaGeneration()
	if gen == g.gen {
		return
	}
	g.gen = gen

	c := g.r.DiskControl()
	text := "media changed"
	if c.EjectState() {
		text = "tray open"
	} else if x, ok := c.(disk.ExtendedControl); ok {
		if label, ok := x.ImageLabel(c.ImageIndex()); ok {
			text = label
		}
	}
	g.osd = text
	g.osdTill = time.Now().Add(2 * time.Second)
	g.counter = -1
}

// swapDisk ejects the current image and mounts the next one.
func (g *gui) swapDisk() {
	c := g.r.DiskControl()
	n := c.NumImages()
	if n == 0 {
		return
	}
	c.SetEjectState(true)
	c.SetImageIndex((c.ImageIndex() + 1) % n)
	c.SetEjectState(false)
}

func drawOSD(dst *image.RGBA, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, dst.Bounds().Max.Y-4),
	}
	d.DrawString(text)
}

func clampInt16(v int) int16 {
	const max, min = 32767, -32768
	switch {
	case v > max:
		return max
	case v < min:
		return min
	default:
		return int16(v)
	}
}
