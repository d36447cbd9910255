// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"bytes"
	"encoding/binary"
	"io"
)

// nefTree is the directory tree read from a NEF file.
// Interop and GPS may be nil.
type nefTree struct {
	byteOrder binary.ByteOrder
	primary   *directory
	exif      *directory
	interop   *directory
	gps       *directory
}

// makerNote returns the MakerNote entry, or nil.
func (t *nefTree) makerNote() *entry {
	return t.exif.find(tagMakerNote, exifTypeAny)
}

type ifdDecoder struct {
	*streamReader
}

func newIFDDecoder(r io.ReadSeeker) *ifdDecoder {
	return &ifdDecoder{streamReader: newStreamReader(r, binary.BigEndian)}
}

// decodeHeader reads the TIFF header at the current position and returns the offset of IFD0.
func (d *ifdDecoder) decodeHeader() (uint32, error) {
	byteOrder, ok := byteOrderFromMark(d.read2BE())
	if !ok {
		return 0, newInvalidFormatErrorf("invalid TIFF byte order mark")
	}
	d.byteOrder = byteOrder
	if id := d.read2(); id != tiffMagic {
		return 0, newInvalidFormatErrorf("invalid TIFF magic %d", id)
	}
	return d.read4(), nil
}

// decodeDirectory reads the IFD at offset, including all out-of-line values.
func (d *ifdDecoder) decodeDirectory(name string, offset uint32) (*directory, error) {
	d.seek(int64(offset))

	numTags := d.read2()
	if numTags == 0 {
		return nil, newInvalidFormatErrorf("empty IFD structure encountered (%s at offset %d)", name, offset)
	}

	dir := &directory{
		name:    name,
		entries: make([]*entry, 0, numTags),
	}

	for i := 0; i < int(numTags); i++ {
		tag := d.read2()
		typ := exifType(d.read2())
		count := d.read4()
		raw := d.readBytesVolatile(ifdInlineValueSize)

		if !typ.isValid() {
			return nil, newInvalidFormatErrorf("IFD entry with tag %X has invalid type %d", tag, typ)
		}
		size := typ.size(count)
		if size > maxBufSize {
			return nil, newInvalidFormatErrorf("IFD entry with tag %X: value size %d exceeds max %d", tag, size, maxBufSize)
		}

		e := &entry{
			tag:   tag,
			typ:   typ,
			count: count,
			valid: true,
		}
		if size <= ifdInlineValueSize {
			e.value = bytes.Clone(raw[:size])
		} else {
			e.offset = d.byteOrder.Uint32(raw)
		}
		dir.entries = append(dir.entries, e)
	}

	// Out-of-line values, which must be inside the stream.
	var streamLen int64 = -1
	for _, e := range dir.entries {
		size := e.typ.size(e.count)
		if size <= ifdInlineValueSize {
			continue
		}
		if streamLen < 0 {
			streamLen = d.length()
		}
		if int64(e.offset)+int64(size) > streamLen {
			return nil, newInvalidFormatErrorf("IFD entry with tag %X: value at offset %d with size %d is outside of the file", e.tag, e.offset, size)
		}
		e.value = make([]byte, size)
		d.seek(int64(e.offset))
		if _, err := io.ReadFull(d.r, e.value); err != nil {
			d.stop(err)
		}
	}

	return dir, nil
}

// decodeSubDirectory decodes the directory referenced by the pointer tag in parent.
// It returns nil if the tag is not present or is not a usable pointer.
// Other entries with the pointer tag are dropped from parent.
func (d *ifdDecoder) decodeSubDirectory(name string, parent *directory, tag uint16) (*directory, error) {
	offset, found := parent.pointer(tag, d.byteOrder)
	if !found {
		parent.dropStalePointers(tag, false)
		return nil, nil
	}
	dir, err := d.decodeDirectory(name, offset)
	if err != nil {
		return nil, err
	}
	parent.dropStalePointers(tag, true)
	return dir, nil
}

// decodeNEF reads IFD0 and the EXIF, Interop and GPS sub-IFDs of a Nikon NEF file.
func (d *ifdDecoder) decodeNEF() (*nefTree, error) {
	d.seek(0)
	ifd0Offset, err := d.decodeHeader()
	if err != nil {
		return nil, err
	}

	tree := &nefTree{byteOrder: d.byteOrder}

	if tree.primary, err = d.decodeDirectory("IFD0", ifd0Offset); err != nil {
		return nil, err
	}

	if err := checkNikonMake(tree.primary); err != nil {
		return nil, err
	}

	if tree.exif, err = d.decodeSubDirectory("EXIF", tree.primary, tagExifIFDPointer); err != nil {
		return nil, err
	}
	if tree.exif == nil {
		return nil, newInvalidFormatErrorf("no EXIF data found")
	}

	if tree.interop, err = d.decodeSubDirectory("Interop", tree.exif, tagInteropIFDPointer); err != nil {
		return nil, err
	}

	if tree.gps, err = d.decodeSubDirectory("GPS", tree.primary, tagGPSIFDPointer); err != nil {
		return nil, err
	}

	return tree, nil
}

func checkNikonMake(primary *directory) error {
	e := primary.find(tagMake, exifTypeASCII)
	if e == nil {
		return newInvalidFormatErrorf("not produced by a Nikon camera, manufacturer is '<unknown>'")
	}
	if bytes.HasPrefix(e.value, []byte("NIKON")) || bytes.HasPrefix(e.value, []byte("Nikon")) {
		return nil
	}
	return newInvalidFormatErrorf("not produced by a Nikon camera, manufacturer is '%s'", decodeLatin1(e.value))
}

func byteOrderFromMark(mark uint16) (binary.ByteOrder, bool) {
	switch mark {
	case byteOrderBigEndian:
		return binary.BigEndian, true
	case byteOrderLittleEndian:
		return binary.LittleEndian, true
	default:
		return nil, false
	}
}
