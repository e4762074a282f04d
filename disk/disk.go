// Package disk implements the disk-image control surface: a registry
// of image paths the host can page through, eject and replace, and the
// drives those images mount on.
//
// Nothing here is safe for concurrent use. All operations run on
// whichever thread currently owns execution, so they can never race
// with the machine's view of the mounted media.
package disk

import (
	"log"
	"path/filepath"
)

// Control is the basic host-facing surface of the registry.
type Control interface {
	NumImages() int
	ImageIndex() int
	SetImageIndex(index int) bool
	EjectState() bool
	SetEjectState(ejected bool) bool
	AddImage() bool
	ReplaceImage(index int, path string) bool
}

// ExtendedControl adds label lookup for hosts that can display it.
// Hosts probe for it with a type assertion and fall back to Control.
type ExtendedControl interface {
	Control
	ImageLabel(index int) (string, bool)
}

// Registry tracks the disk images of one session. Failed operations
// are reported as a false return and a log line, leaving prior state
// unchanged; none of them are fatal.
type Registry struct {
	images  []string
	current int
	ejected bool
	secure  bool

	floppy  *Floppy
	optical *Optical
}

var _ ExtendedControl = (*Registry)(nil)

// New returns an empty registry. When secure is set, mount and unmount
// operations are refused.
func New(secure bool) *Registry {
	return &Registry{
		secure:  secure,
		floppy:  NewFloppy(),
		optical: NewOptical(),
	}
}

func (r *Registry) NumImages() int   { return len(r.images) }
func (r *Registry) ImageIndex() int  { return r.current }
func (r *Registry) EjectState() bool { return r.ejected }

// Drives returns the session's drives, floppy first.
func (r *Registry) Drives() []Drive {
	return []Drive{r.floppy, r.optical}
}

// Drive returns the drive with the given letter, or nil.
func (r *Registry) Drive(letter byte) Drive {
	switch letter {
	case 'A':
		return r.floppy
	case 'D':
		return r.optical
	}
	return nil
}

// SetEjectState opens or closes the virtual tray. Closing the tray
// mounts the current image; opening it unmounts it.
func (r *Registry) SetEjectState(ejected bool) bool {
	r.ejected = ejected
	if ejected {
		log.Print("disk: tray open")
	} else {
		log.Print("disk: tray close")
	}
	if len(r.images) == 0 {
		return true
	}
	if ejected {
		return r.unmount(r.images[r.current])
	}
	return r.Mount(r.images[r.current])
}

// SetImageIndex selects which image the next tray close mounts.
func (r *Registry) SetImageIndex(index int) bool {
	if index < 0 || index >= len(r.images) {
		return false
	}
	r.current = index
	log.Printf("disk: index %d", index)
	return true
}

// AddImage appends an empty image slot, to be filled by ReplaceImage.
func (r *Registry) AddImage() bool {
	r.images = append(r.images, "")
	log.Printf("disk: count %d", len(r.images))
	return true
}

// ReplaceImage sets the image path at index. An empty path removes the
// entry instead; if that leaves the current index past the end it is
// moved to the last remaining image.
func (r *Registry) ReplaceImage(index int, path string) bool {
	if index < 0 || index >= len(r.images) {
		log.Printf("disk: host tried to replace invalid index %d", index)
		return false
	}
	if path == "" {
		r.images = append(r.images[:index], r.images[index+1:]...)
		if r.current >= len(r.images) && len(r.images) > 0 {
			r.SetImageIndex(len(r.images) - 1)
		}
		return true
	}
	r.images[index] = path
	return true
}

// Append is a convenience for hosts adding a known image.
func (r *Registry) Append(path string) bool {
	return r.AddImage() && r.ReplaceImage(len(r.images)-1, path)
}

// ImageLabel returns the display label for the image at index.
func (r *Registry) ImageLabel(index int) (string, bool) {
	if index < 0 || index >= len(r.images) {
		return "", false
	}
	return filepath.Base(r.images[index]), true
}

// Mount mounts an image on the drive its extension selects. On
// success every drive's cache is dropped and the drive's media is
// cycled so the machine notices the change. Mounting the very first
// image also registers it at index 0.
func (r *Registry) Mount(path string) bool {
	if r.secure {
		log.Print("disk: mounting is not permitted in secure mode")
		return false
	}
	letter, ok := driveLetterFor(path)
	if !ok {
		log.Printf("disk: unsupported disk image %s", filepath.Ext(path))
		return false
	}
	drive := r.Drive(letter)
	if !drive.Mount(path) {
		return false
	}
	for _, d := range r.Drives() {
		d.EmptyCache()
	}
	drive.Cycle()
	if len(r.images) == 0 {
		r.AddImage()
		r.images[0] = path
	}
	return true
}

func (r *Registry) unmount(path string) bool {
	if r.secure {
		log.Print("disk: unmounting is not permitted in secure mode")
		return false
	}
	if len(r.images) == 0 {
		log.Print("disk: no disks added to index")
		return false
	}
	letter, ok := driveLetterFor(path)
	if !ok {
		log.Printf("disk: unsupported disk image %s", filepath.Ext(path))
		return false
	}
	drive := r.Drive(letter)
	if drive.Mounted() && !drive.Unmount() {
		return false
	}
	drive.Cycle()
	return true
}
