package disk

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Drive is a mount point for disk images. The two implementations are
// the floppy drive (A) and the optical drive (D); which one an image
// mounts on is decided by its file extension.
type Drive interface {
	Letter() byte
	Mounted() bool
	Mount(path string) bool
	Unmount() bool

	// Cycle simulates the media being removed and re-inserted, so the
	// machine can notice the change.
	Cycle()
	// EmptyCache drops any state derived from the mounted image.
	EmptyCache()

	// Generation increments whenever the mounted media may have
	// changed. Device implementations compare it to invalidate
	// whatever they have read.
	Generation() int

	SectorSize() int
	NumSectors() int
	// ReadSector copies sector n into buf and returns the number of
	// bytes copied (zero if nothing is mounted or n is out of range).
	ReadSector(n int, buf []byte) int
}

// media holds the state shared by both drive kinds. Images are treated
// as opaque sector arrays; interpreting a filesystem inside them is
// the machine's business.
type media struct {
	letter     byte
	kind       string
	sectorSize int

	path       string
	data       []byte
	generation int
}

func (m *media) Letter() byte    { return m.letter }
func (m *media) Mounted() bool   { return m.data != nil }
func (m *media) Generation() int { return m.generation }
func (m *media) SectorSize() int { return m.sectorSize }

func (m *media) NumSectors() int {
	return (len(m.data) + m.sectorSize - 1) / m.sectorSize
}

func (m *media) Cycle() {
	m.generation++
	log.Printf("disk: drive %c media cycled", m.letter)
}

func (m *media) EmptyCache() {
	m.generation++
}

func (m *media) Unmount() bool {
	if m.data == nil {
		log.Printf("disk: drive %c has nothing mounted", m.letter)
		return false
	}
	log.Printf("disk: unmounting %s %s", m.kind, m.path)
	m.path, m.data = "", nil
	m.generation++
	return true
}

func (m *media) ReadSector(n int, buf []byte) int {
	if m.data == nil || n < 0 || n >= m.NumSectors() {
		return 0
	}
	off := n * m.sectorSize
	end := off + m.sectorSize
	if end > len(m.data) {
		end = len(m.data)
	}
	return copy(buf, m.data[off:end])
}

func (m *media) mount(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("disk: reading image: %v", err)
		return false
	}
	m.path, m.data = path, data
	m.generation++
	log.Printf("disk: drive %c is mounted as %s", m.letter, path)
	return true
}

// Floppy is drive A. It mounts .img images of up to 2880 KiB.
type Floppy struct {
	media
}

const maxFloppyBytes = 2880 * 1024

func NewFloppy() *Floppy {
	return &Floppy{media{letter: 'A', kind: "floppy", sectorSize: 512}}
}

func (f *Floppy) Mount(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		log.Printf("disk: failed to detect image file size: %v", err)
		return false
	}
	if fi.Size() > maxFloppyBytes {
		log.Print("disk: mounting HDD images is not supported")
		return false
	}
	return f.mount(path)
}

// Optical is drive D. It mounts .iso and .cue images.
type Optical struct {
	media
}

func NewOptical() *Optical {
	return &Optical{media{letter: 'D', kind: "cdrom", sectorSize: 2048}}
}

func (o *Optical) Mount(path string) bool {
	return o.mount(path)
}

// driveLetterFor maps an image's extension to the drive it mounts on.
func driveLetterFor(path string) (byte, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".img":
		return 'A', true
	case ".iso", ".cue":
		return 'D', true
	}
	return 0, false
}
