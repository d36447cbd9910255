// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// exifType represents the basic tiff tag data types.
//
//go:generate stringer -type=exifType
type exifType uint16

const (
	// Matches any type in lookups.
	exifTypeAny exifType = 0

	exifTypeUnsignedByte  exifType = 1
	exifTypeASCII         exifType = 2
	exifTypeUnsignedShort exifType = 3
	exifTypeUnsignedLong  exifType = 4
	exifTypeUnsignedRat   exifType = 5
	exifTypeSignedByte    exifType = 6
	exifTypeUndef         exifType = 7
	exifTypeSignedShort   exifType = 8
	exifTypeSignedLong    exifType = 9
	exifTypeSignedRat     exifType = 10
	exifTypeSignedFloat   exifType = 11
	exifTypeSignedDouble  exifType = 12

	exifTypeMinValid = exifTypeUnsignedByte
	exifTypeMaxValid = exifTypeSignedDouble
)

const (
	ifdEntrySize          = 12
	ifdInlineValueSize    = 4
	tiffHeaderSize        = 8
	tiffMagic             = 42
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
)

// Size in bytes of each type.
var exifTypeSize = [...]uint32{
	exifTypeUnsignedByte:  1,
	exifTypeASCII:         1,
	exifTypeUnsignedShort: 2,
	exifTypeUnsignedLong:  4,
	exifTypeUnsignedRat:   8,
	exifTypeSignedByte:    1,
	exifTypeUndef:         1,
	exifTypeSignedShort:   2,
	exifTypeSignedLong:    4,
	exifTypeSignedRat:     8,
	exifTypeSignedFloat:   4,
	exifTypeSignedDouble:  8,
}

func (t exifType) isValid() bool {
	return t >= exifTypeMinValid && t <= exifTypeMaxValid
}

// size returns the size in bytes of count values of type t.
// The result is 64 bit so a bogus count can not overflow.
func (t exifType) size(count uint32) uint64 {
	if !t.isValid() {
		return 0
	}
	return uint64(exifTypeSize[t]) * uint64(count)
}

const (
	tagImageDescription  = 0x010e
	tagMake              = 0x010f
	tagModel             = 0x0110
	tagOrientation       = 0x0112
	tagXResolution       = 0x011a
	tagYResolution       = 0x011b
	tagResolutionUnit    = 0x0128
	tagSoftware          = 0x0131
	tagDateTime          = 0x0132
	tagArtist            = 0x013b
	tagYCbCrPositioning  = 0x0213
	tagCopyright         = 0x8298
	tagExifIFDPointer    = 0x8769
	tagGPSIFDPointer     = 0x8825
	tagISOSpeedRatings   = 0x8827
	tagMakerNote         = 0x927c
	tagInteropIFDPointer = 0xa005

	// Nikon MakerNote tags.
	tagNikonISO     = 0x0002
	tagNikonISOCode = 0x0006
)

// Tags in IFD0 that make sense in a JPEG.
// Everything else in a NEF IFD0 describes the raw data or its thumbnails.
var primaryAllowList = map[uint16]bool{
	tagImageDescription: true,
	tagMake:             true,
	tagModel:            true,
	tagOrientation:      true,
	tagXResolution:      true,
	tagYResolution:      true,
	tagResolutionUnit:   true,
	tagSoftware:         true,
	tagDateTime:         true,
	tagArtist:           true,
	tagYCbCrPositioning: true,
	tagCopyright:        true,
	tagExifIFDPointer:   true,
	tagGPSIFDPointer:    true,
}

// A tag is represented in 12 bytes:
//   - 2 bytes for the tag ID
//   - 2 bytes for the data type
//   - 4 bytes for the number of data values of the specified type
//   - 4 bytes for the value itself, if it fits, otherwise for a pointer to another location where the data may be found.
type entry struct {
	tag   uint16
	typ   exifType
	count uint32

	// The value, always exactly size() bytes.
	// Values of 4 bytes or less are written inline in the entry.
	value []byte

	// The value offset as read from the source. Only set for out-of-line values.
	offset uint32

	// Invalid entries are kept in place but skipped by lookups and when writing.
	valid bool

	// Where the entry was written, relative to the TIFF header.
	// Set by the serializer, used to patch pointer values.
	where uint32
}

func newEntry(tag uint16, typ exifType, count uint32) *entry {
	if !typ.isValid() {
		panic(fmt.Sprintf("newEntry: invalid type %d for tag 0x%04x", typ, tag))
	}
	return &entry{
		tag:   tag,
		typ:   typ,
		count: count,
		value: make([]byte, typ.size(count)),
		valid: true,
	}
}

func newShortEntry(tag uint16, v uint16, byteOrder binary.ByteOrder) *entry {
	e := newEntry(tag, exifTypeUnsignedShort, 1)
	byteOrder.PutUint16(e.value, v)
	return e
}

func newRatEntry(tag uint16, num, den uint32, byteOrder binary.ByteOrder) *entry {
	e := newEntry(tag, exifTypeUnsignedRat, 1)
	byteOrder.PutUint32(e.value, num)
	byteOrder.PutUint32(e.value[4:], den)
	return e
}

func (e *entry) size() uint32 {
	return uint32(len(e.value))
}

func (e *entry) isInline() bool {
	return e.size() <= ifdInlineValueSize
}

// paddedSize is the size of an out-of-line value including the pad byte
// that keeps the next value on an even offset.
func (e *entry) paddedSize() uint32 {
	return e.size() + e.size()%2
}

func (e *entry) String() string {
	return fmt.Sprintf("tag 0x%04x type %s count %d", e.tag, e.typ, e.count)
}

// directory is an IFD; its entries are kept sorted by tag.
type directory struct {
	name    string
	entries []*entry
}

// find returns the first valid entry with the given tag and type (or any type if typ is exifTypeAny).
// The scan stops at the first valid entry with a greater tag.
func (d *directory) find(tag uint16, typ exifType) *entry {
	if d == nil {
		return nil
	}
	for _, e := range d.entries {
		if !e.valid {
			continue
		}
		if e.tag == tag && (typ == exifTypeAny || e.typ == typ) {
			return e
		}
		if e.tag > tag {
			break
		}
	}
	return nil
}

// insert inserts e before the first valid entry with a tag not less than e.tag.
// Invalid entries are stepped over.
func (d *directory) insert(e *entry) {
	i := 0
	for i < len(d.entries) && (!d.entries[i].valid || d.entries[i].tag < e.tag) {
		i++
	}
	d.entries = slices.Insert(d.entries, i, e)
}

// numValid returns the number of entries that will be written.
func (d *directory) numValid() int {
	var n int
	for _, e := range d.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// filter invalidates every valid entry whose tag is not in allowed.
// It returns the number of entries invalidated.
func (d *directory) filter(allowed map[uint16]bool) int {
	var n int
	for _, e := range d.entries {
		if e.valid && !allowed[e.tag] {
			e.valid = false
			n++
		}
	}
	return n
}

// synthesizeMandatory adds the tags JPEG readers expect in IFD0 if they are missing.
func (d *directory) synthesizeMandatory(byteOrder binary.ByteOrder) {
	for _, tag := range []uint16{tagXResolution, tagYResolution} {
		if d.find(tag, exifTypeAny) == nil {
			d.insert(newRatEntry(tag, 300, 1, byteOrder))
		}
	}
	if d.find(tagResolutionUnit, exifTypeAny) == nil {
		// Inches.
		d.insert(newShortEntry(tagResolutionUnit, 2, byteOrder))
	}
	if d.find(tagYCbCrPositioning, exifTypeAny) == nil {
		// Co-sited.
		d.insert(newShortEntry(tagYCbCrPositioning, 2, byteOrder))
	}
}

// pointer returns the offset held by the pointer tag in d, if present.
func (d *directory) pointer(tag uint16, byteOrder binary.ByteOrder) (uint32, bool) {
	e := d.find(tag, exifTypeUnsignedLong)
	if e == nil || e.count == 0 {
		return 0, false
	}
	return byteOrder.Uint32(e.value), true
}

// dropStalePointers invalidates the entries with the pointer tag in d,
// except the one a sub-IFD was decoded from if decoded is set.
// Entries left behind would be written with an offset into the source file.
func (d *directory) dropStalePointers(tag uint16, decoded bool) int {
	var keep *entry
	if decoded {
		keep = d.find(tag, exifTypeUnsignedLong)
	}
	var n int
	for _, e := range d.entries {
		if e.valid && e.tag == tag && e != keep {
			e.valid = false
			n++
		}
	}
	return n
}
