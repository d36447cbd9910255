// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// MakerNoteKind is the layout of a Nikon MakerNote.
//
//go:generate stringer -type=MakerNoteKind
type MakerNoteKind int

const (
	// MakerNoteNone means there is no MakerNote (or it was dropped).
	MakerNoteNone MakerNoteKind = iota
	// MakerNoteUnknown is a MakerNote in a layout we don't understand.
	MakerNoteUnknown
	// MakerNoteIFDAt0 is a bare IFD at the start of the MakerNote.
	// Offsets are relative to the enclosing TIFF header.
	MakerNoteIFDAt0
	// MakerNoteIFDAt8 is a bare IFD after an 8 byte vendor prefix.
	// Offsets are relative to the enclosing TIFF header.
	MakerNoteIFDAt8
	// MakerNoteTIFFAt10 is a complete TIFF structure at offset 10 with its own byte order.
	// Offsets are relative to its own header, so it can be moved as is.
	MakerNoteTIFFAt10
)

const (
	makerNoteMinSize    = 18
	makerNoteTIFFOffset = 10
)

var makerNoteNikonPrefix = []byte("Nikon\x00")

// Maps the ISO code found in MakerNoteTIFFAt10 notes to ISO speed.
// Codes 1 and 3 are not mapped and the scan continues past them.
var nikonISOCodes = map[uint16]uint16{
	0: 80,
	2: 160,
	4: 320,
	5: 100,
}

var errISONotFound = errors.New("ISO value not found in MakerNote")

type makerNote struct {
	kind MakerNoteKind

	// The byte order of the inner IFD.
	byteOrder binary.ByteOrder

	b []byte
}

// classifyMakerNote works out the layout of the MakerNote value b.
// outer is the byte order of the file the note was read from.
func classifyMakerNote(b []byte, outer binary.ByteOrder) makerNote {
	m := makerNote{kind: MakerNoteUnknown, byteOrder: outer, b: b}
	if len(b) < makerNoteMinSize {
		return m
	}
	if !bytes.HasPrefix(b, makerNoteNikonPrefix) {
		m.kind = MakerNoteIFDAt0
		return m
	}
	if byteOrder, ok := byteOrderFromMark(binary.BigEndian.Uint16(b[makerNoteTIFFOffset:])); ok {
		if byteOrder.Uint16(b[makerNoteTIFFOffset+2:]) == tiffMagic {
			m.kind = MakerNoteTIFFAt10
			m.byteOrder = byteOrder
			return m
		}
	}
	m.kind = MakerNoteIFDAt8
	return m
}

// makerNoteIFD is a view of the IFD inside a MakerNote.
type makerNoteIFD struct {
	byteOrder binary.ByteOrder
	b         []byte
	start     int
	numTags   int
}

// ifd locates the inner IFD and checks that all of its entries are inside the note.
func (m makerNote) ifd() (makerNoteIFD, error) {
	var start uint64
	switch m.kind {
	case MakerNoteIFDAt0:
		start = 0
	case MakerNoteIFDAt8:
		start = 8
	case MakerNoteTIFFAt10:
		start = makerNoteTIFFOffset + uint64(m.byteOrder.Uint32(m.b[makerNoteTIFFOffset+4:]))
	default:
		return makerNoteIFD{}, fmt.Errorf("unknown MakerNote layout")
	}

	size := uint64(len(m.b))
	if start+2 > size {
		return makerNoteIFD{}, fmt.Errorf("MakerNote IFD offset %d outside of MakerNote (%d bytes)", start, size)
	}
	numTags := uint64(m.byteOrder.Uint16(m.b[start:]))
	if numTags == 0 {
		return makerNoteIFD{}, fmt.Errorf("empty MakerNote IFD")
	}
	if start+2+numTags*ifdEntrySize > size {
		return makerNoteIFD{}, fmt.Errorf("MakerNote IFD with %d entries does not fit in %d bytes", numTags, size)
	}

	return makerNoteIFD{
		byteOrder: m.byteOrder,
		b:         m.b,
		start:     int(start),
		numTags:   int(numTags),
	}, nil
}

// entry returns the raw 12 bytes of entry i.
func (d makerNoteIFD) entry(i int) []byte {
	pos := d.start + 2 + i*ifdEntrySize
	return d.b[pos : pos+ifdEntrySize]
}

func (d makerNoteIFD) header(i int) (tag uint16, typ exifType, count uint32) {
	b := d.entry(i)
	return d.byteOrder.Uint16(b), exifType(d.byteOrder.Uint16(b[2:])), d.byteOrder.Uint32(b[4:])
}

// recoverISO finds the ISO speed stored in the MakerNote.
// A failure here is not fatal; it only means we can not repair the ISO tag.
func (m makerNote) recoverISO() (uint16, error) {
	d, err := m.ifd()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errISONotFound, err)
	}

	for i := 0; i < d.numTags; i++ {
		tag, typ, count := d.header(i)
		if typ != exifTypeUnsignedShort {
			continue
		}
		value := d.entry(i)[8:]

		switch m.kind {
		case MakerNoteIFDAt0, MakerNoteIFDAt8:
			if tag == tagNikonISO && (count == 1 || count == 2) {
				// Take the last value.
				iso := d.byteOrder.Uint16(value[(count-1)*2:])
				if iso == 0 {
					return 0, errISONotFound
				}
				return iso, nil
			}
		case MakerNoteTIFFAt10:
			if tag == tagNikonISOCode && count == 1 {
				if iso, found := nikonISOCodes[d.byteOrder.Uint16(value)]; found {
					return iso, nil
				}
			}
		}
	}

	return 0, errISONotFound
}

// relocate adds delta to every out-of-line value offset in the inner IFD.
// This is needed for notes with offsets relative to the enclosing TIFF header
// when the note is written at a different position than it was read from.
func (m makerNote) relocate(delta uint32) error {
	if m.kind == MakerNoteTIFFAt10 {
		return nil
	}
	d, err := m.ifd()
	if err != nil {
		return err
	}
	for i := 0; i < d.numTags; i++ {
		tag, typ, count := d.header(i)
		if !typ.isValid() {
			return fmt.Errorf("MakerNote entry with tag %X has invalid type %d", tag, typ)
		}
		if typ.size(count) > ifdInlineValueSize {
			b := d.entry(i)[8:]
			d.byteOrder.PutUint32(b, d.byteOrder.Uint32(b)+delta)
		}
	}
	return nil
}
