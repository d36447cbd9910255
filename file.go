// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package exifcopy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies the EXIF data in the file source into the JPEG file destination.
// The new JPEG is written to a temporary file next to destination and then
// copied over destination, which keeps its ownership and permissions.
// Source, Destination and Output in opts are ignored.
func CopyFile(source, destination string, opts Options) (result Result, err error) {
	src, err := os.Open(source)
	if err != nil {
		return result, err
	}
	defer src.Close()

	dst, err := os.Open(destination)
	if err != nil {
		return result, err
	}
	defer dst.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".*")
	if err != nil {
		return result, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	opts.Source = src
	opts.Destination = dst
	opts.Output = tmp

	result, err = Copy(opts)
	if err != nil {
		return result, fmt.Errorf("%s -> %s: %w", source, destination, err)
	}

	if err := dst.Close(); err != nil {
		return result, err
	}
	if err := copyBack(tmp, destination); err != nil {
		return result, err
	}

	return result, nil
}

// copyBack overwrites the file filename with the content of tmp.
func copyBack(tmp *os.File, filename string) error {
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, tmp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
