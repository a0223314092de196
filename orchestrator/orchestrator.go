// Package orchestrator bridges the on-host Disk representation and the
// 32 KiB pattern-memory image the FDC protocol engine exposes to the
// knitting machine. It is a small set of stateless functions, in the
// style of the teacher's loader package: no state of its own, just
// wiring between already-built pieces.
package orchestrator

import (
	"fmt"
	"io"

	"github.com/mhallin/knitty-gritty/disk"
	"github.com/mhallin/knitty-gritty/memimage"
)

// patternSectorCount is the number of sectors the 32 KiB pattern memory
// image occupies once scattered onto the disk.
const patternSectorCount = memimage.ImageSize / disk.SectorDataLength

// StateToDisk serializes a MachineState into its 32768-byte image and
// scatters it over the first patternSectorCount sectors of d. Run once
// at startup to seed the disk from whatever pattern state the session
// begins with.
func StateToDisk(s *memimage.MachineState, d *disk.Disk) error {
	image, err := s.Serialize()
	if err != nil {
		return fmt.Errorf("orchestrator: serializing machine state: %w", err)
	}

	if err := d.Scatter(image); err != nil {
		return fmt.Errorf("orchestrator: scattering machine state onto disk: %w", err)
	}

	return nil
}

// DiskToState concatenates the first patternSectorCount sectors' data
// and parses it back into a MachineState. Run once at shutdown to
// recover whatever pattern edits the machine made during the session.
func DiskToState(d *disk.Disk) (*memimage.MachineState, error) {
	image := d.ConcatSectors(patternSectorCount)

	s, err := memimage.Parse(image)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parsing disk image: %w", err)
	}

	return s, nil
}

// WriteRawDump writes the first patternSectorCount sectors' concatenated
// data to w as a flat 32768-byte file, matching the raw-dump interface
// spec.md §6 describes. Any 32768-byte file written this way can be fed
// back through memimage.Parse directly.
func WriteRawDump(w io.Writer, d *disk.Disk) error {
	image := d.ConcatSectors(patternSectorCount)
	if _, err := w.Write(image); err != nil {
		return fmt.Errorf("orchestrator: writing raw dump: %w", err)
	}
	return nil
}
