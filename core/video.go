package core

// Video is device 0x20: a 320x200 indexed-color framebuffer.
//
// Port map:
//
//	0x0-0x1  X coordinate (short)
//	0x2-0x3  Y coordinate (short)
//	0x4      color index
//	0x5      plot: write any value to set the pixel at X,Y
//	0x6      fill: write any value to fill the screen with the color
//	0x7      present: write any value to hand the frame to the host
type Video struct {
	mem       deviceMem
	fb        [videoW * videoH]byte
	pix       [videoW * videoH * 4]byte
	presented bool
}

const (
	videoW = 320
	videoH = 200
)

// VideoWidth and VideoHeight are the dimensions of the emulated
// display, for hosts sizing their output before the first frame.
const (
	VideoWidth  = videoW
	VideoHeight = videoH
)

// palette is the classic 16-color text-mode palette.
var palette = [16][3]byte{
	{0x00, 0x00, 0x00}, // black
	{0x00, 0x00, 0xaa}, // blue
	{0x00, 0xaa, 0x00}, // green
	{0x00, 0xaa, 0xaa}, // cyan
	{0xaa, 0x00, 0x00}, // red
	{0xaa, 0x00, 0xaa}, // magenta
	{0xaa, 0x55, 0x00}, // brown
	{0xaa, 0xaa, 0xaa}, // light gray
	{0x55, 0x55, 0x55}, // dark gray
	{0x55, 0x55, 0xff}, // light blue
	{0x55, 0xff, 0x55}, // light green
	{0x55, 0xff, 0xff}, // light cyan
	{0xff, 0x55, 0x55}, // light red
	{0xff, 0x55, 0xff}, // light magenta
	{0xff, 0xff, 0x55}, // yellow
	{0xff, 0xff, 0xff}, // white
}

func (v *Video) In(p byte) byte { return v.mem[p] }

func (v *Video) Out(p, b byte) {
	v.mem[p] = b
	switch p {
	case 0x5:
		x, y := v.mem.short(0x0), v.mem.short(0x2)
		if x < videoW && y < videoH {
			v.fb[int(y)*videoW+int(x)] = v.mem[0x4] & 0xf
		}
	case 0x6:
		c := v.mem[0x4] & 0xf
		for i := range v.fb {
			v.fb[i] = c
		}
	case 0x7:
		v.presented = true
	}
}

// rgba renders the framebuffer as RGBA pixels. The returned slice is
// reused across calls.
func (v *Video) rgba() []byte {
	for i, c := range v.fb {
		rgb := palette[c]
		v.pix[i*4] = rgb[0]
		v.pix[i*4+1] = rgb[1]
		v.pix[i*4+2] = rgb[2]
		v.pix[i*4+3] = 0xff
	}
	return v.pix[:]
}

func (v *Video) clear() {
	v.fb = [videoW * videoH]byte{}
	v.presented = false
}
