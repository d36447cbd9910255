// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errShortRead = errors.New("short read")

func newStreamReader(r io.ReadSeeker, byteOrder binary.ByteOrder) *streamReader {
	return &streamReader{
		r:         r,
		byteOrder: byteOrder,
	}
}

// streamReader is a wrapper around a ReadSeeker that provides methods to read binary data.
// Any read failure stops the processing, see stop.
// Note that this is not thread safe.
type streamReader struct {
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	buf []byte

	readErr error
}

// 10 MB should be plenty for image metadata.
const maxBufSize = 10 * 1024 * 1024

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

func (e *streamReader) pos() int64 {
	n, err := e.r.Seek(0, io.SeekCurrent)
	if err != nil {
		e.stop(err)
	}
	return n
}

func (e *streamReader) read2() uint16 {
	const n = 2
	e.readNIntoBuf(n)
	return e.byteOrder.Uint16(e.buf[:n])
}

// read2BE reads a 16 bit value in big endian order regardless of the stream's byte order.
// Byte order marks and JPEG segment lengths are read this way.
func (e *streamReader) read2BE() uint16 {
	const n = 2
	e.readNIntoBuf(n)
	return binary.BigEndian.Uint16(e.buf[:n])
}

func (e *streamReader) read4() uint32 {
	const n = 4
	e.readNIntoBuf(n)
	return e.byteOrder.Uint32(e.buf[:n])
}

// readBytes reads n bytes into a newly allocated slice.
func (e *streamReader) readBytes(n int) []byte {
	if n > maxBufSize {
		e.stop(newInvalidFormatErrorf("length %d exceeds max %d", n, maxBufSize))
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
	return b
}

// readBytesVolatile reads a slice of bytes from the stream
// which is not guaranteed to be valid after the next read.
func (e *streamReader) readBytesVolatile(n int) []byte {
	e.readNIntoBuf(n)
	return e.buf[:n]
}

func (e *streamReader) readNIntoBuf(n int) {
	e.allocateBuf(n)
	n2, err := io.ReadFull(e.r, e.buf[:n])
	if err != nil {
		e.stop(err)
	}
	if n != n2 {
		e.stop(errShortRead)
	}
}

func (e *streamReader) seek(pos int64) {
	_, err := e.r.Seek(pos, io.SeekStart)
	if err != nil {
		e.stop(err)
	}
}

// length returns the total length of the stream, keeping the current position.
func (e *streamReader) length() int64 {
	cur := e.pos()
	n, err := e.r.Seek(0, io.SeekEnd)
	if err != nil {
		e.stop(err)
	}
	e.seek(cur)
	return n
}

func (e *streamReader) skip(n int64) {
	if _, err := e.r.Seek(n, io.SeekCurrent); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) stop(err error) {
	if err != nil {
		e.readErr = err
	}
	panic(errStop)
}

// streamWriter writes binary data into an in-memory buffer.
// Positions are relative to the start of the buffer, which for an
// EXIF block is the start of the TIFF header.
type streamWriter struct {
	byteOrder binary.ByteOrder
	b         []byte

	scratch [4]byte
}

func newStreamWriter(byteOrder binary.ByteOrder) *streamWriter {
	return &streamWriter{
		byteOrder: byteOrder,
		b:         make([]byte, 0, 4096),
	}
}

func (w *streamWriter) pos() uint32 {
	return uint32(len(w.b))
}

func (w *streamWriter) write1(v uint8) {
	w.b = append(w.b, v)
}

func (w *streamWriter) write2(v uint16) {
	w.byteOrder.PutUint16(w.scratch[:2], v)
	w.b = append(w.b, w.scratch[:2]...)
}

func (w *streamWriter) write4(v uint32) {
	w.byteOrder.PutUint32(w.scratch[:], v)
	w.b = append(w.b, w.scratch[:]...)
}

func (w *streamWriter) writeBytes(b []byte) {
	w.b = append(w.b, b...)
}

// put4 overwrites 4 already written bytes at pos.
func (w *streamWriter) put4(pos, v uint32) {
	if int(pos)+4 > len(w.b) {
		panic(fmt.Sprintf("put4 at %d outside of written area (%d)", pos, len(w.b)))
	}
	w.byteOrder.PutUint32(w.b[pos:], v)
}

func (w *streamWriter) bytes() []byte {
	return w.b
}
