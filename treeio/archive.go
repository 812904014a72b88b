// Package treeio persists trees as zip archives. Every archive entry is gob
// encoded and compressed with zstd.
package treeio

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/tksuoran/bvh/log"
	"github.com/tksuoran/bvh/tree"
)

const (
	headerFile  = "header.bin"
	nodesFile   = "nodes.bin"
	indicesFile = "indices.bin"

	formatVersion = 1
)

var (
	ErrBadArchive = errors.New("treeio: bad tree archive")
)

type header struct {
	Version   int
	NodeCount int
	PrimCount int
}

var logger = log.New("treeio")

// Write tree t to filename.
func Write(t *tree.Tree, filename string) error {
	logger.Noticef("writing tree to %s", filename)
	start := time.Now()

	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err = writeArchive(f, t); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	logger.Infof("wrote %d nodes in %d ms", len(t.Nodes), time.Since(start).Nanoseconds()/1e6)
	return nil
}

func writeArchive(w io.Writer, t *tree.Tree) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	entries := []struct {
		name  string
		value interface{}
	}{
		{headerFile, header{Version: formatVersion, NodeCount: len(t.Nodes), PrimCount: len(t.PrimIndices)}},
		{nodesFile, t.Nodes},
		{indicesFile, t.PrimIndices},
	}
	for _, entry := range entries {
		cw, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zstd.ZipMethodWinZip})
		if err != nil {
			return err
		}
		if err = gob.NewEncoder(cw).Encode(entry.value); err != nil {
			return fmt.Errorf("treeio: encoding %s: %w", entry.name, err)
		}
	}
	return zw.Close()
}

// Read a tree from location and verify its structure. Location is either a
// file path or an http/https URL.
func Read(location string) (*tree.Tree, error) {
	logger.Noticef("reading tree from %s", location)
	start := time.Now()

	res, err := openResource(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer res.Close()

	zr, err := zip.NewReader(res, res.size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	if res.IsRemote() {
		logger.Infof("fetched %d bytes from %s", res.size, location)
	}

	var (
		hdr   header
		t     = &tree.Tree{}
		found = map[string]bool{}
	)
	for _, f := range zr.File {
		var target interface{}
		switch f.Name {
		case headerFile:
			target = &hdr
		case nodesFile:
			target = &t.Nodes
		case indicesFile:
			target = &t.PrimIndices
		default:
			logger.Warningf("unknown file %s in tree archive; skipping", f.Name)
			continue
		}

		if err = decode(f, target); err != nil {
			return nil, err
		}
		found[f.Name] = true
	}

	for _, name := range []string{headerFile, nodesFile, indicesFile} {
		if !found[name] {
			return nil, fmt.Errorf("%w: missing %s", ErrBadArchive, name)
		}
	}
	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrBadArchive, hdr.Version)
	}
	if hdr.NodeCount != len(t.Nodes) || hdr.PrimCount != len(t.PrimIndices) {
		return nil, fmt.Errorf("%w: header declares %d nodes and %d primitives; found %d and %d",
			ErrBadArchive, hdr.NodeCount, hdr.PrimCount, len(t.Nodes), len(t.PrimIndices))
	}
	if t.PrimIndices == nil {
		t.PrimIndices = []uint32{}
	}
	if err = t.Verify(nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	logger.Infof("read %d nodes in %d ms", len(t.Nodes), time.Since(start).Nanoseconds()/1e6)
	return t, nil
}

func decode(f *zip.File, target interface{}) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadArchive, f.Name, err)
	}
	defer rc.Close()

	if err = gob.NewDecoder(rc).Decode(target); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrBadArchive, f.Name, err)
	}
	return nil
}
