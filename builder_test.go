// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"bytes"
	"encoding/binary"
	"slices"
)

// Helpers to build small NEF-like TIFF files and JPEGs in tests.
// The TIFF writer here does not share code with ifdEncoder.

type testTag struct {
	tag   uint16
	typ   exifType
	count uint32
	value []byte

	// If set, the value is created from its absolute position in the file.
	valueAt func(pos uint32) []byte
}

func (t testTag) size() uint32 {
	return uint32(t.typ.size(t.count))
}

type testDir struct {
	tags []testTag
	// Sub directories keyed by pointer tag.
	subs map[uint16]*testDir

	offset uint32
}

type testTIFF struct {
	bo binary.ByteOrder
}

func newTestTIFF(bo binary.ByteOrder) testTIFF {
	return testTIFF{bo: bo}
}

func (b testTIFF) ascii(tag uint16, s string) testTag {
	v := append([]byte(s), 0)
	return testTag{tag: tag, typ: exifTypeASCII, count: uint32(len(v)), value: v}
}

func (b testTIFF) short(tag uint16, vs ...uint16) testTag {
	var v []byte
	for _, s := range vs {
		v = appendUint16(b.bo, v, s)
	}
	return testTag{tag: tag, typ: exifTypeUnsignedShort, count: uint32(len(vs)), value: v}
}

func (b testTIFF) long(tag uint16, vs ...uint32) testTag {
	var v []byte
	for _, s := range vs {
		v = appendUint32(b.bo, v, s)
	}
	return testTag{tag: tag, typ: exifTypeUnsignedLong, count: uint32(len(vs)), value: v}
}

func (b testTIFF) rat(tag uint16, num, den uint32) testTag {
	v := appendUint32(b.bo, nil, num)
	v = appendUint32(b.bo, v, den)
	return testTag{tag: tag, typ: exifTypeUnsignedRat, count: 1, value: v}
}

func (b testTIFF) undef(tag uint16, v []byte) testTag {
	return testTag{tag: tag, typ: exifTypeUndef, count: uint32(len(v)), value: v}
}

func (b testTIFF) undefAt(tag uint16, size uint32, valueAt func(pos uint32) []byte) testTag {
	return testTag{tag: tag, typ: exifTypeUndef, count: size, valueAt: valueAt}
}

func (d *testDir) allTags(b testTIFF) []testTag {
	tags := slices.Clone(d.tags)
	for tag := range d.subs {
		tags = append(tags, b.long(tag, 0))
	}
	slices.SortStableFunc(tags, func(a, b testTag) int {
		return int(a.tag) - int(b.tag)
	})
	return tags
}

func (d *testDir) size(b testTIFF) uint32 {
	tags := d.allTags(b)
	n := uint32(2 + len(tags)*ifdEntrySize + 4)
	for _, t := range tags {
		if s := t.size(); s > 4 {
			n += s + s%2
		}
	}
	return n
}

func (d *testDir) walk(fn func(d *testDir)) {
	fn(d)
	keys := make([]uint16, 0, len(d.subs))
	for k := range d.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		d.subs[k].walk(fn)
	}
}

// build writes the TIFF file with root as IFD0.
// Directories are written depth first, each followed by its values.
// trailer is appended at the end, e.g. to simulate raw image data.
func (b testTIFF) build(root *testDir, trailer []byte) []byte {
	var dirs []*testDir
	root.walk(func(d *testDir) {
		dirs = append(dirs, d)
	})

	off := uint32(tiffHeaderSize)
	for _, d := range dirs {
		d.offset = off
		off += d.size(b)
	}

	var out []byte
	if b.bo == binary.LittleEndian {
		out = append(out, "II"...)
	} else {
		out = append(out, "MM"...)
	}
	out = appendUint16(b.bo, out, tiffMagic)
	out = appendUint32(b.bo, out, tiffHeaderSize)

	for _, d := range dirs {
		tags := d.allTags(b)
		out = appendUint16(b.bo, out, uint16(len(tags)))
		dataPos := uint32(len(out)) + uint32(len(tags))*ifdEntrySize + 4
		var data []byte
		for _, t := range tags {
			if sub, ok := d.subs[t.tag]; ok {
				t = b.long(t.tag, sub.offset)
			}
			if t.valueAt != nil {
				t.value = t.valueAt(dataPos + uint32(len(data)))
			}
			out = appendUint16(b.bo, out, t.tag)
			out = appendUint16(b.bo, out, uint16(t.typ))
			out = appendUint32(b.bo, out, t.count)
			if t.size() <= 4 {
				var v [4]byte
				copy(v[:], t.value)
				out = append(out, v[:]...)
			} else {
				out = appendUint32(b.bo, out, dataPos+uint32(len(data)))
				data = append(data, t.value...)
				if len(t.value)%2 == 1 {
					data = append(data, 0)
				}
			}
		}
		out = appendUint32(b.bo, out, 0)
		out = append(out, data...)
	}

	return append(out, trailer...)
}

// Nikon MakerNote builders.

// makerNoteRawIFD builds a bare IFD with inline values only.
func makerNoteRawIFD(bo binary.ByteOrder, tags ...testTag) []byte {
	var b []byte
	b = appendUint16(bo, b, uint16(len(tags)))
	for _, t := range tags {
		b = appendUint16(bo, b, t.tag)
		b = appendUint16(bo, b, uint16(t.typ))
		b = appendUint32(bo, b, t.count)
		var v [4]byte
		copy(v[:], t.value)
		b = append(b, v[:]...)
	}
	return appendUint32(bo, b, 0)
}

// makerNoteTIFF builds a MakerNote with its own TIFF header at offset 10.
func makerNoteTIFF(bo binary.ByteOrder, tags ...testTag) []byte {
	b := []byte("Nikon\x00\x02\x10\x00\x00")
	if bo == binary.LittleEndian {
		b = append(b, "II"...)
	} else {
		b = append(b, "MM"...)
	}
	b = appendUint16(bo, b, tiffMagic)
	b = appendUint32(bo, b, tiffHeaderSize)
	return append(b, makerNoteRawIFD(bo, tags...)...)
}

// makerNoteWithOffsets builds a MakerNote with the IFD at offset 8 (or 0 if prefix is false)
// holding an ISO tag and an out-of-line ASCII value, "FINE ".
// pos is the absolute position of the MakerNote in the file.
// It returns the MakerNote and the position of the ASCII value relative to the MakerNote.
func makerNoteWithOffsets(bo binary.ByteOrder, prefix bool, iso uint16, pos uint32) ([]byte, uint32) {
	var b []byte
	if prefix {
		b = append(b, "Nikon\x00\x01\x00"...)
	}
	start := uint32(len(b))
	const numTags = 2
	valuePos := start + 2 + numTags*ifdEntrySize + 4

	b = appendUint16(bo, b, numTags)
	// ISO, count 2, the last one is used.
	b = appendUint16(bo, b, tagNikonISO)
	b = appendUint16(bo, b, uint16(exifTypeUnsignedShort))
	b = appendUint32(bo, b, 2)
	b = appendUint16(bo, b, 0)
	b = appendUint16(bo, b, iso)
	// Quality.
	b = appendUint16(bo, b, 0x0004)
	b = appendUint16(bo, b, uint16(exifTypeASCII))
	b = appendUint32(bo, b, 6)
	b = appendUint32(bo, b, pos+valuePos)
	b = appendUint32(bo, b, 0)
	b = append(b, "FINE \x00"...)

	return b, valuePos
}

const makerNoteWithOffsetsSize = 8 + 2 + 2*ifdEntrySize + 4 + 6

// testNEF returns a NEF-like file with the usual IFD0 clutter.
func testNEF(bo binary.ByteOrder, makerNote testTag, withISO bool) []byte {
	b := newTestTIFF(bo)

	exifTags := []testTag{
		b.rat(0x829a, 1, 250), // ExposureTime
		b.ascii(0x9003, "2005:06:01 12:00:00"),
	}
	if withISO {
		exifTags = append(exifTags, b.short(tagISOSpeedRatings, 400))
	}
	if makerNote.typ != 0 {
		exifTags = append(exifTags, makerNote)
	}

	root := &testDir{
		tags: []testTag{
			b.long(0x00fe, 1), // NewSubfileType
			b.ascii(tagMake, "NIKON CORPORATION"),
			b.ascii(tagModel, "NIKON D70"),
			b.short(tagOrientation, 1),
			b.long(0x0111, 1000), // StripOffsets
			b.ascii(tagSoftware, "Ver.2.00"),
			b.ascii(tagDateTime, "2005:06:01 12:00:00"),
			b.long(0x0201, 2000), // JPEGInterchangeFormat
			b.long(0x0202, 100),  // JPEGInterchangeFormatLength
		},
		subs: map[uint16]*testDir{
			tagExifIFDPointer: {
				tags: exifTags,
				subs: map[uint16]*testDir{
					tagInteropIFDPointer: {
						tags: []testTag{b.ascii(0x0001, "R98")},
					},
				},
			},
			tagGPSIFDPointer: {
				tags: []testTag{
					b.undef(0x0000, []byte{2, 2, 0, 0}),
					b.ascii(0x0001, "N"),
				},
			},
		},
	}

	return b.build(root, bytes.Repeat([]byte{0xab}, 64))
}

// Scan data with a restart marker and a stuffed 0xff.
var testScanData = []byte{0x12, 0xff, 0x00, 0x34, 0xff, 0xd0, 0x56, 0x78, 0xff, 0xd9}

// testJPEG returns a minimal JPEG with an APP0, optionally an APP1 with exifPayload,
// a DQT, an SOF0 and an SOS segment followed by testScanData.
func testJPEG(exifPayload []byte) []byte {
	var b []byte
	segment := func(marker byte, data []byte) {
		b = append(b, 0xff, marker)
		b = binary.BigEndian.AppendUint16(b, uint16(len(data)+2))
		b = append(b, data...)
	}
	b = append(b, 0xff, 0xd8)
	segment(0xe0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"))
	if exifPayload != nil {
		segment(0xe1, exifPayload)
	}
	segment(0xdb, bytes.Repeat([]byte{1}, 65))
	segment(0xc0, []byte{8, 0, 1, 0, 1, 1, 1, 0x11, 0})
	segment(0xda, []byte{1, 1, 0, 0, 0x3f, 0})
	return append(b, testScanData...)
}

// binary.ByteOrder has no Append methods, only the concrete byte orders do.
func appendUint16(bo binary.ByteOrder, b []byte, v uint16) []byte {
	var buf [2]byte
	bo.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint32(bo binary.ByteOrder, b []byte, v uint32) []byte {
	var buf [4]byte
	bo.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}
