// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"encoding/binary"
	"fmt"
)

var exifHeader = []byte("Exif\x00\x00")

// The max length of a JPEG segment, including the 2 length bytes.
const maxSegmentLength = 0xffff

// pointerFixup is a reserved 4 byte slot holding the offset of a
// directory that is not yet written.
type pointerFixup struct {
	name     string
	at       uint32
	resolved bool
}

type ifdEncoder struct {
	*streamWriter

	// The MakerNote entry in the EXIF IFD, if any.
	makerNote *entry

	fixups []*pointerFixup
}

func newIFDEncoder(byteOrder binary.ByteOrder, makerNote *entry) *ifdEncoder {
	return &ifdEncoder{
		streamWriter: newStreamWriter(byteOrder),
		makerNote:    makerNote,
	}
}

func (w *ifdEncoder) writeHeader() {
	if w.byteOrder == binary.LittleEndian {
		w.writeBytes([]byte("II"))
	} else {
		w.writeBytes([]byte("MM"))
	}
	w.write2(tiffMagic)
	// IFD0 follows the header.
	w.write4(tiffHeaderSize)
}

// writeDirectory writes the valid entries in d followed by their out-of-line values.
// The offset to the next IFD is always 0.
func (w *ifdEncoder) writeDirectory(d *directory) error {
	numTags := uint32(d.numValid())
	w.write2(uint16(numTags))

	// The values go right after the entries and the next IFD offset.
	valueOffset := w.pos() + numTags*ifdEntrySize + 4

	for _, e := range d.entries {
		if !e.valid {
			continue
		}
		e.where = w.pos()
		w.write2(e.tag)
		w.write2(uint16(e.typ))
		w.write4(e.count)
		if e.isInline() {
			var v [ifdInlineValueSize]byte
			copy(v[:], e.value)
			w.writeBytes(v[:])
		} else {
			w.write4(valueOffset)
			valueOffset += e.paddedSize()
		}
	}

	w.write4(0)

	for _, e := range d.entries {
		if !e.valid || e.isInline() {
			continue
		}
		if e == w.makerNote {
			if err := w.relocateMakerNote(e); err != nil {
				return err
			}
		}
		w.writeBytes(e.value)
		if e.size()%2 == 1 {
			w.write1(0)
		}
	}

	return nil
}

// relocateMakerNote patches the offsets inside the MakerNote
// for its new position, which is the current position.
func (w *ifdEncoder) relocateMakerNote(e *entry) error {
	note := classifyMakerNote(e.value, w.byteOrder)
	delta := w.pos() - e.offset
	if err := note.relocate(delta); err != nil {
		return newInvalidFormatErrorf("unknown format of the MakerNote field (%s); consider running with --nomakernote", err)
	}
	return nil
}

// reservePointer reserves the value slot of the pointer tag in d, which must already be written.
func (w *ifdEncoder) reservePointer(d *directory, tag uint16) (*pointerFixup, error) {
	e := d.find(tag, exifTypeUnsignedLong)
	if e == nil {
		return nil, fmt.Errorf("%s: pointer tag %X not found", d.name, tag)
	}
	f := &pointerFixup{
		name: fmt.Sprintf("%s/%X", d.name, tag),
		at:   e.where + 8,
	}
	w.fixups = append(w.fixups, f)
	return f, nil
}

// resolve writes offset into the slot reserved by f.
func (w *ifdEncoder) resolve(f *pointerFixup, offset uint32) {
	if f.resolved {
		panic(fmt.Sprintf("pointer %s resolved twice", f.name))
	}
	w.put4(f.at, offset)
	f.resolved = true
}

// writeSubDirectory writes d at the current position and points f to it.
func (w *ifdEncoder) writeSubDirectory(f *pointerFixup, d *directory) error {
	w.resolve(f, w.pos())
	return w.writeDirectory(d)
}

// checkFixups verifies that every reserved pointer has been resolved.
func (w *ifdEncoder) checkFixups() error {
	for _, f := range w.fixups {
		if !f.resolved {
			return fmt.Errorf("pointer %s was never resolved", f.name)
		}
	}
	return nil
}

// encodeTree writes the TIFF structure for t:
// IFD0, then the EXIF, Interop and GPS sub-IFDs.
func encodeTree(t *nefTree) ([]byte, error) {
	w := newIFDEncoder(t.byteOrder, t.makerNote())
	w.writeHeader()

	if err := w.writeDirectory(t.primary); err != nil {
		return nil, err
	}

	exifFixup, err := w.reservePointer(t.primary, tagExifIFDPointer)
	if err != nil {
		return nil, err
	}
	var gpsFixup *pointerFixup
	if t.gps != nil {
		if gpsFixup, err = w.reservePointer(t.primary, tagGPSIFDPointer); err != nil {
			return nil, err
		}
	}

	if err := w.writeSubDirectory(exifFixup, t.exif); err != nil {
		return nil, err
	}

	if t.interop != nil {
		interopFixup, err := w.reservePointer(t.exif, tagInteropIFDPointer)
		if err != nil {
			return nil, err
		}
		if err := w.writeSubDirectory(interopFixup, t.interop); err != nil {
			return nil, err
		}
	}

	if gpsFixup != nil {
		if err := w.writeSubDirectory(gpsFixup, t.gps); err != nil {
			return nil, err
		}
	}

	if err := w.checkFixups(); err != nil {
		return nil, err
	}

	return w.bytes(), nil
}

// newEXIFBlock prefixes the TIFF structure with the EXIF header and
// checks that it fits in an APP1 segment.
func newEXIFBlock(tiff []byte) ([]byte, error) {
	block := make([]byte, 0, len(exifHeader)+len(tiff))
	block = append(block, exifHeader...)
	block = append(block, tiff...)
	if n := len(block) + 2; n > maxSegmentLength {
		return nil, newInvalidFormatErrorf("the EXIF data block is too large (%d bytes), cannot copy it to a JPEG file; consider running with --nomakernote to reduce its size", n)
	}
	return block, nil
}
