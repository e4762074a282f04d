package core

import (
	"log"

	"github.com/asciibeats/dosbox-core/disk"
	"github.com/asciibeats/dosbox-core/machine"
)

// DiskPort is device 0x60: the program's window onto the mounted
// drives. It reads whole sectors into machine memory.
//
// Port map:
//
//	0x0      drive select: 0 for A, 1 for D
//	0x1      command: write cmdRead to copy the sector to the address
//	0x2-0x3  sector number (short)
//	0x4-0x5  destination address (short)
//	0x6      status of the last command
//	0x7      media generation, low byte; changes when media changes
//	0x8-0x9  sector count of the mounted media (short)
type DiskPort struct {
	disks *disk.Registry
	m     *machine.Machine
	mem   deviceMem
}

const cmdRead = 0x01

const (
	statusOK        = 0x00
	statusNoMedia   = 0x01
	statusBadSector = 0x02
)

func (d *DiskPort) drive() disk.Drive {
	if d.mem[0x0] == 0 {
		return d.disks.Drive('A')
	}
	return d.disks.Drive('D')
}

func (d *DiskPort) In(p byte) byte {
	switch p {
	case 0x7:
		return byte(d.drive().Generation())
	case 0x8:
		return byte(d.drive().NumSectors() >> 8)
	case 0x9:
		return byte(d.drive().NumSectors())
	}
	return d.mem[p]
}

func (d *DiskPort) Out(p, b byte) {
	d.mem[p] = b
	if p != 0x1 || b != cmdRead {
		return
	}
	drv := d.drive()
	if !drv.Mounted() {
		d.mem[0x6] = statusNoMedia
		return
	}
	var (
		sector = int(d.mem.short(0x2))
		dest   = d.mem.short(0x4)
		buf    = make([]byte, drv.SectorSize())
	)
	n := drv.ReadSector(sector, buf)
	if n == 0 {
		d.mem[0x6] = statusBadSector
		log.Printf("core: drive %c: read of sector %d failed", drv.Letter(), sector)
		return
	}
	copy(d.m.Mem[dest:], buf[:n])
	d.mem[0x6] = statusOK
}
