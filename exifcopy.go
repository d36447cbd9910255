// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

// Version is the version of the exifcopy library and the cpexif command.
const Version = "0.2"

var (
	errInvalidFormat = errors.New("exifcopy: invalid format")

	// Internal error to signal that we should stop any further processing.
	errStop = errors.New("stop")
)

const (
	// SourceFormatUnknown is the zero value.
	SourceFormatUnknown SourceFormat = iota
	// JPEG is a JPEG file with EXIF data in an APP1 segment.
	JPEG
	// NEF is a Nikon raw file.
	NEF
)

const markerSOI = 0xffd8

// SourceFormat is the format of the file EXIF data is copied from.
//
//go:generate stringer -type=SourceFormat
type SourceFormat int

// Options contains the options for the Copy function.
type Options struct {
	// The file to read EXIF data from, a JPEG or a Nikon NEF.
	Source io.ReadSeeker

	// The JPEG to copy EXIF data to.
	// Its image data and all segments but APP0 and APP1 are preserved.
	Destination io.ReadSeeker

	// Where to write the new JPEG.
	Output io.Writer

	// NoMakerNote drops the MakerNote from the EXIF data.
	// Only relevant for NEF sources.
	NoMakerNote bool

	// NoISOFix disables the recovery of a missing ISO speed tag from the MakerNote.
	// Only relevant for NEF sources.
	NoISOFix bool

	// Verify decodes the new EXIF block before anything is written to Output.
	Verify bool

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// Result contains the result of a Copy operation.
type Result struct {
	SourceFormat SourceFormat

	// The layout of the MakerNote copied. NEF only.
	MakerNote MakerNoteKind

	// ISO is the ISO speed recovered from the MakerNote, 0 if none.
	ISO uint16

	// The size of the EXIF block written, excluding the APP1 marker and length.
	EXIFSize int
}

// IsInvalidFormat reports whether the error was caused by an invalid or unsupported file format.
// Other errors are I/O errors.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, errInvalidFormat)
}

func newInvalidFormatErrorf(format string, args ...any) error {
	return newInvalidFormatError(fmt.Errorf(format, args...))
}

func newInvalidFormatError(err error) error {
	return fmt.Errorf("%w: %s", errInvalidFormat, err)
}

// isInvalidFormatErrorCandidate reports whether err is caused by input
// ending prematurely.
func isInvalidFormatErrorCandidate(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errShortRead)
}

// Copy copies the EXIF data in opts.Source into the JPEG in opts.Destination
// and writes the result to opts.Output.
// Nothing is written to Output if the EXIF data can not be read or does not fit in a JPEG.
func Copy(opts Options) (result Result, err error) {
	if opts.Source == nil || opts.Destination == nil || opts.Output == nil {
		return result, errors.New("exifcopy: Source, Destination and Output must be set")
	}
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}

	c := &copier{
		opts:   opts,
		result: &result,
		src:    newStreamReader(opts.Source, binary.BigEndian),
		dst:    newStreamReader(opts.Destination, binary.BigEndian),
	}

	defer func() {
		if r := recover(); r != nil {
			err = c.errFromRecover(r)
		}
		if err != nil && !IsInvalidFormat(err) && isInvalidFormatErrorCandidate(err) {
			err = newInvalidFormatError(fmt.Errorf("truncated input: %w", err))
		}
	}()

	block, err := c.readEXIF()
	if err != nil {
		return result, err
	}

	if opts.Verify {
		if err := c.verify(block); err != nil {
			return result, err
		}
	}

	result.EXIFSize = len(block)

	if err := writeJPEG(c.dst, opts.Output, block); err != nil {
		return result, err
	}

	return result, nil
}

type copier struct {
	opts   Options
	result *Result

	src *streamReader
	dst *streamReader
}

func (c *copier) errFromRecover(r any) error {
	if r == errStop {
		for _, sr := range []*streamReader{c.src, c.dst} {
			if sr.readErr != nil {
				return sr.readErr
			}
		}
		return errors.New("exifcopy: stopped without an error")
	}
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("unknown panic: %v", r)
}

// readEXIF detects the source format and returns the EXIF block to write,
// "Exif\0\0" followed by a TIFF structure.
func (c *copier) readEXIF() ([]byte, error) {
	c.src.seek(0)
	id := c.src.read2BE()

	if id == markerSOI {
		c.result.SourceFormat = JPEG
		if c.opts.NoMakerNote || c.opts.NoISOFix {
			c.opts.Warnf("command line options ignored in the JPEG to JPEG copy mode")
		}
		return readJPEGEXIF(c.src)
	}

	if byteOrder, ok := byteOrderFromMark(id); ok && byteOrder.Uint16(c.src.readBytesVolatile(2)) == tiffMagic {
		c.result.SourceFormat = NEF
		return c.readNEFEXIF()
	}

	return nil, newInvalidFormatErrorf("not a NEF, TIFF, or JPEG file")
}

func (c *copier) readNEFEXIF() ([]byte, error) {
	dec := &ifdDecoder{streamReader: c.src}
	tree, err := dec.decodeNEF()
	if err != nil {
		return nil, err
	}

	tree.primary.filter(primaryAllowList)
	tree.primary.synthesizeMandatory(tree.byteOrder)

	// The ISO speed can be recovered from the MakerNote even if it is not copied.
	mn := tree.makerNote()
	if mn != nil && c.opts.NoMakerNote {
		mn.valid = false
	}

	if !c.opts.NoISOFix {
		if err := c.fixISO(tree, mn); err != nil {
			c.opts.Warnf("cannot find the ISO value (%s); consider running with --noisofix", err)
		}
	}

	if mn != nil && mn.valid {
		c.result.MakerNote = classifyMakerNote(mn.value, tree.byteOrder).kind
	}

	tiff, err := encodeTree(tree)
	if err != nil {
		return nil, err
	}

	return newEXIFBlock(tiff)
}

// fixISO adds the ISO speed tag to the EXIF IFD if it's missing,
// using the value stored in the MakerNote.
func (c *copier) fixISO(tree *nefTree, mn *entry) error {
	if tree.exif.find(tagISOSpeedRatings, exifTypeAny) != nil {
		return nil
	}
	if mn == nil {
		return errors.New("no MakerNote")
	}
	iso, err := classifyMakerNote(mn.value, tree.byteOrder).recoverISO()
	if err != nil {
		return err
	}
	tree.exif.insert(newShortEntry(tagISOSpeedRatings, iso, tree.byteOrder))
	c.result.ISO = iso
	return nil
}

// verify decodes the TIFF structure in block with an independent EXIF decoder.
func (c *copier) verify(block []byte) error {
	_, err := exif.Decode(bytes.NewReader(block[len(exifHeader):]))
	if err == nil {
		return nil
	}
	if exif.IsCriticalError(err) || exif.IsExifError(err) {
		return newInvalidFormatErrorf("the new EXIF block does not decode: %s", err)
	}
	c.opts.Warnf("the new EXIF block decodes with errors: %s", err)
	return nil
}
