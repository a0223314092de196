// Package disk models the 80-sector virtual floppy the FDC protocol
// engine serves: fixed-size sectors with a 12-byte id and 1024-byte
// payload, JSON persistence, and the concat/scatter bridge used to
// move the 32 KiB pattern memory image in and out of the first 32
// sectors.
package disk

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// SectorCount is the fixed number of sectors on the virtual disk.
const SectorCount = 80

// SectorIDLength is the fixed length in bytes of a sector id.
const SectorIDLength = 12

// SectorDataLength is the fixed length in bytes of a sector's payload.
const SectorDataLength = 1024

// NotFound is the sentinel index returned when a sector id lookup
// misses.
const NotFound = -1

// Sector is one fixed-size unit of the disk: a 12-byte id and a
// 1024-byte payload.
type Sector struct {
	ID   [SectorIDLength]byte
	Data [SectorDataLength]byte
}

// Disk is the fixed 80-sector virtual floppy.
type Disk struct {
	Sectors [SectorCount]Sector
}

// New returns an empty disk: all sector ids and data zeroed.
func New() *Disk {
	return &Disk{}
}

type jsonSector struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type jsonDisk struct {
	Sectors []jsonSector `json:"sectors"`
}

// Load reads a Disk from its JSON-on-host representation.
func Load(path string) (*Disk, error) {
	f, err := os.Open(path) // #nosec G304 -- caller-supplied disk image path
	if err != nil {
		return nil, fmt.Errorf("disk: opening %s: %w", path, err)
	}
	defer f.Close()

	var doc jsonDisk
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("disk: decoding %s: %w", path, err)
	}

	if len(doc.Sectors) != SectorCount {
		return nil, fmt.Errorf("disk: %s has %d sectors, want %d", path, len(doc.Sectors), SectorCount)
	}

	d := New()
	for i, js := range doc.Sectors {
		id, err := base64.StdEncoding.DecodeString(js.ID)
		if err != nil {
			return nil, fmt.Errorf("disk: sector %d id: %w", i, err)
		}
		if len(id) != SectorIDLength {
			return nil, fmt.Errorf("disk: sector %d id length %d, want %d", i, len(id), SectorIDLength)
		}

		data, err := base64.StdEncoding.DecodeString(js.Data)
		if err != nil {
			return nil, fmt.Errorf("disk: sector %d data: %w", i, err)
		}
		if len(data) != SectorDataLength {
			return nil, fmt.Errorf("disk: sector %d data length %d, want %d", i, len(data), SectorDataLength)
		}

		copy(d.Sectors[i].ID[:], id)
		copy(d.Sectors[i].Data[:], data)
	}

	return d, nil
}

// Save writes the Disk to its JSON-on-host representation, pretty
// printed with a 2-space indent.
func (d *Disk) Save(path string) error {
	doc := jsonDisk{Sectors: make([]jsonSector, SectorCount)}
	for i, s := range d.Sectors {
		doc.Sectors[i] = jsonSector{
			ID:   base64.StdEncoding.EncodeToString(s.ID[:]),
			Data: base64.StdEncoding.EncodeToString(s.Data[:]),
		}
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("disk: encoding: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("disk: writing %s: %w", path, err)
	}

	return nil
}

// IndexOfID returns the index of the first sector whose id equals the
// query, or NotFound.
func (d *Disk) IndexOfID(id [SectorIDLength]byte) int {
	for i, s := range d.Sectors {
		if s.ID == id {
			return i
		}
	}
	return NotFound
}

// ConcatSectors concatenates the first count sectors' data into a
// single byte slice.
func (d *Disk) ConcatSectors(count int) []byte {
	out := make([]byte, 0, count*SectorDataLength)
	for i := 0; i < count; i++ {
		out = append(out, d.Sectors[i].Data[:]...)
	}
	return out
}

// scatteredID is the sentinel id written to every sector touched by
// Scatter: 0x01 followed by eleven zero bytes.
var scatteredID = func() [SectorIDLength]byte {
	var id [SectorIDLength]byte
	id[0] = 0x01
	return id
}()

// Scatter writes data into consecutive sectors starting at sector 0,
// 1024 bytes per sector, setting each touched sector's id to the
// fixed scattered-sector marker.
func (d *Disk) Scatter(data []byte) error {
	n := (len(data) + SectorDataLength - 1) / SectorDataLength
	if n > SectorCount {
		return fmt.Errorf("disk: scatter data spans %d sectors, only %d available", n, SectorCount)
	}

	for i := 0; i*SectorDataLength < len(data); i++ {
		start := i * SectorDataLength
		end := start + SectorDataLength
		if end > len(data) {
			end = len(data)
		}

		d.Sectors[i].ID = scatteredID
		copy(d.Sectors[i].Data[:], data[start:end])
	}

	return nil
}
