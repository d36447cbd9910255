// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command cpexif copies EXIF data from a JPEG or a Nikon NEF file to a JPEG file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/bep/exifcopy"
)

const usage = `Usage:
  %[1]s --help
  %[1]s --version
  %[1]s source.jpg destination.jpg
      Copy the EXIF data from the source JPEG file
      to the destination JPEG file.
  %[1]s [options] source.nef destination.jpg
      options:
          --nomakernote    do not copy the MakerNote field
          --noisofix       do not fix the missing ISO field
          --verify         decode the new EXIF data before writing
      Copy the EXIF data from the source NEF file
      (Nikon RAW file) to the destination JPEG file.
      Thumbnails are not copied.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	progname := filepath.Base(args[0])
	logger := log.New(stderr, progname+": ", 0)

	fs := flag.NewFlagSet(progname, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		help        = fs.Bool("help", false, "")
		version     = fs.Bool("version", false, "")
		noMakerNote = fs.Bool("nomakernote", false, "")
		noISOFix    = fs.Bool("noisofix", false, "")
		verify      = fs.Bool("verify", false, "")
	)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stdout, usage, progname)
			return 0
		}
		logger.Printf("%s. Try '%s --help' for more information", err, progname)
		return 2
	}

	if *help {
		fmt.Fprintf(stdout, usage, progname)
		return 0
	}
	if *version {
		fmt.Fprintf(stdout, "%s version %s\n", progname, exifcopy.Version)
		return 0
	}

	if fs.NArg() != 2 {
		logger.Printf("incorrect usage. Try '%s --help' for more information", progname)
		return 2
	}

	opts := exifcopy.Options{
		NoMakerNote: *noMakerNote,
		NoISOFix:    *noISOFix,
		Verify:      *verify,
		Warnf: func(format string, args ...any) {
			logger.Printf("WARNING: "+format, args...)
		},
	}

	if _, err := exifcopy.CopyFile(fs.Arg(0), fs.Arg(1), opts); err != nil {
		logger.Print(err)
		return 2
	}

	return 0
}
