// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// decodeLatin1 decodes an EXIF ASCII value for display.
// Camera firmware sometimes writes Latin-1 into ASCII tags.
func decodeLatin1(b []byte) string {
	b = trimBytesNulls(b)
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return printableString(string(b))
	}
	return printableString(string(s))
}

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}

func trimBytesNulls(b []byte) []byte {
	var lo, hi int
	for lo = 0; lo < len(b) && b[lo] == 0; lo++ {
	}
	for hi = len(b) - 1; hi >= 0 && b[hi] == 0; hi-- {
	}
	if lo > hi {
		return nil
	}
	return b[lo : hi+1]
}
