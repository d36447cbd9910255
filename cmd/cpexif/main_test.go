// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

// A JPEG with an EXIF APP1 segment, an APP0 and some image data.
var testJPEG = []byte(
	"\xff\xd8" +
		"\xff\xe1\x00\x14Exif\x00\x00MM\x00*\x00\x00\x00\x08\x00\x00\x00\x00" +
		"\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00" +
		"\xff\xda\x00\x08\x01\x01\x00\x00\x3f\x00" +
		"\x12\x34\xff\xd9")

func runCmd(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"/usr/bin/cpexif"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	c := qt.New(t)
	code, stdout, stderr := runCmd("--version")
	c.Assert(code, qt.Equals, 0)
	c.Assert(stdout, qt.Equals, "cpexif version 0.2\n")
	c.Assert(stderr, qt.Equals, "")
}

func TestRunHelp(t *testing.T) {
	c := qt.New(t)
	for _, arg := range []string{"--help", "-h"} {
		code, stdout, _ := runCmd(arg)
		c.Assert(code, qt.Equals, 0)
		c.Assert(stdout, qt.Contains, "cpexif [options] source.nef destination.jpg")
		c.Assert(stdout, qt.Contains, "--nomakernote")
	}
}

func TestRunUsageErrors(t *testing.T) {
	c := qt.New(t)

	for _, args := range [][]string{
		{},
		{"a.jpg"},
		{"a.jpg", "b.jpg", "c.jpg"},
		{"--nosuchflag", "a.jpg", "b.jpg"},
	} {
		code, stdout, stderr := runCmd(args...)
		c.Assert(code, qt.Equals, 2, qt.Commentf("%v", args))
		c.Assert(stdout, qt.Equals, "")
		c.Assert(stderr, qt.Matches, `cpexif: .*Try 'cpexif --help' for more information\n`)
	}
}

func TestRunCopy(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	source := filepath.Join(dir, "a.jpg")
	destination := filepath.Join(dir, "b.jpg")
	c.Assert(os.WriteFile(source, testJPEG, 0o644), qt.IsNil)
	const app1End = 2 + 2 + 20
	c.Assert(os.WriteFile(destination, append(testJPEG[:2:2], testJPEG[app1End:]...), 0o644), qt.IsNil)

	code, _, stderr := runCmd("--nomakernote", source, destination)
	c.Assert(code, qt.Equals, 0)
	c.Assert(stderr, qt.Equals, "cpexif: WARNING: command line options ignored in the JPEG to JPEG copy mode\n")

	got, err := os.ReadFile(destination)
	c.Assert(err, qt.IsNil)
	// The APP1 is copied, the APP0 dropped.
	c.Assert(got, qt.DeepEquals, append(testJPEG[:app1End:app1End], testJPEG[app1End+18:]...))

	code, _, stderr = runCmd(destination, source+".missing")
	c.Assert(code, qt.Equals, 2)
	c.Assert(stderr, qt.Contains, "no such file")
}
