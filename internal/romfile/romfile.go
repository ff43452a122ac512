// Package romfile reads CHIP-8 program images from disk. Images may be
// stored raw or compressed with gzip, zip or 7-Zip.
package romfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/cespare/xxhash"
)

// MaxSize caps how much is read out of a compressed image. Anything larger
// cannot be a CHIP-8 program.
const MaxSize = 64 * 1024

var (
	ErrEmptyArchive = errors.New("archive contains no files")
	ErrTooLarge     = errors.New("image too large")
)

// Load reads the image at path, decompressing it according to its file
// extension. Files with any other extension are returned as they are.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rom, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rom, nil
}

// Decode unpacks data that was stored with the given file extension. For
// archives the first regular file is used.
func Decode(ext string, data []byte) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".gz":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAll(r)

	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}

		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}

			r, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return readAll(r)
		}
		return nil, ErrEmptyArchive

	case ".7z":
		zr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}

		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}

			r, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return readAll(r)
		}
		return nil, ErrEmptyArchive
	}

	return data, nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxSize)
	}
	return data, nil
}

// Digest identifies an image in logs.
func Digest(rom []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(rom))
}
