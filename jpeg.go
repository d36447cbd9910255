// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/garyhouston/jpegsegs"
)

const (
	markerAPP1 = jpegsegs.APP0 + 1

	// APP1 length (2) + "Exif\0\0" (6) + TIFF header (8).
	minEXIFSegmentLength = 16
)

// isStandalone reports whether m is a marker without a length field.
func isStandalone(m jpegsegs.Marker) bool {
	return m == jpegsegs.TEM || (m >= jpegsegs.RST0 && m <= jpegsegs.RST0+7)
}

// jpegError converts errors from the jpegsegs package.
// They are format errors unless the underlying reader failed.
func jpegError(what string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return newInvalidFormatErrorf("%s: JPEG file is corrupted: %s", what, err)
}

// readJPEGEXIF returns the payload of the first EXIF APP1 segment in r,
// which must be positioned right after the SOI marker.
func readJPEGEXIF(r *streamReader) ([]byte, error) {
	var buf [2]byte
	for {
		marker, err := jpegsegs.ReadMarker(r.r, buf[:])
		if err != nil {
			return nil, jpegError("source", err)
		}
		if isStandalone(marker) {
			continue
		}
		if marker == jpegsegs.SOS || marker == jpegsegs.EOI {
			break
		}

		length := r.read2BE()
		if length < 2 {
			return nil, newInvalidFormatErrorf("source: JPEG file is corrupted: segment length %d", length)
		}

		start := r.pos()
		if marker == markerAPP1 && length >= minEXIFSegmentLength && isEXIFPayloadHeader(r.readBytesVolatile(minEXIFSegmentLength-2)) {
			r.seek(start)
			return r.readBytes(int(length) - 2), nil
		}
		r.seek(start + int64(length) - 2)
	}

	return nil, newInvalidFormatErrorf("no EXIF data found")
}

// isEXIFPayloadHeader reports whether b starts with "Exif\0\0" and a valid TIFF header.
func isEXIFPayloadHeader(b []byte) bool {
	if !bytes.HasPrefix(b, exifHeader) {
		return false
	}
	b = b[len(exifHeader):]
	if len(b) < 4 {
		return false
	}
	byteOrder, ok := byteOrderFromMark(uint16(b[0])<<8 | uint16(b[1]))
	return ok && byteOrder.Uint16(b[2:]) == tiffMagic
}

// writeJPEG writes the JPEG in r to w with a new APP1 segment holding block.
// APP0 and APP1 segments in r are dropped, everything else is copied as is.
func writeJPEG(r *streamReader, w io.Writer, block []byte) error {
	var buf [2]byte

	r.seek(0)
	if err := jpegsegs.ReadHeader(r.r, buf[:]); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return err
		}
		return newInvalidFormatErrorf("destination: not a JPEG: %s", err)
	}

	bw := bufio.NewWriter(w)
	if err := writeJPEGSegments(r, bw, block, buf[:]); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func writeJPEGSegments(r *streamReader, w io.Writer, block, buf []byte) error {
	writeErr := func(err error) error {
		return fmt.Errorf("write: %w", err)
	}

	if err := jpegsegs.WriteMarker(w, jpegsegs.SOI); err != nil {
		return writeErr(err)
	}
	if err := jpegsegs.WriteMarker(w, markerAPP1); err != nil {
		return writeErr(err)
	}
	if err := jpegsegs.WriteData(w, block); err != nil {
		return writeErr(err)
	}

	for {
		marker, err := jpegsegs.ReadMarker(r.r, buf)
		if err != nil {
			return jpegError("destination", err)
		}

		if isStandalone(marker) {
			if err := jpegsegs.WriteMarker(w, marker); err != nil {
				return writeErr(err)
			}
			continue
		}

		if marker == jpegsegs.EOI {
			return newInvalidFormatErrorf("destination: there is no image data")
		}

		length := r.read2BE()
		if length < 2 {
			return newInvalidFormatErrorf("destination: JPEG file is corrupted: segment length %d", length)
		}

		if marker == jpegsegs.APP0 || marker == markerAPP1 {
			r.skip(int64(length) - 2)
			continue
		}

		if err := jpegsegs.WriteMarker(w, marker); err != nil {
			return writeErr(err)
		}
		buf[0], buf[1] = byte(length>>8), byte(length)
		if _, err := w.Write(buf[:2]); err != nil {
			return writeErr(err)
		}

		if marker == jpegsegs.SOS {
			// The rest is scan data, copy all of it.
			if _, err := io.Copy(w, r.r); err != nil {
				return err
			}
			return nil
		}

		if _, err := io.CopyN(w, r.r, int64(length)-2); err != nil {
			return err
		}
	}
}
