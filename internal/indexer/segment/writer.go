// Package segment persists dictionary snapshots as checksummed binary files.
// One file holds the full contents of one named dictionary; a newer snapshot
// replaces the older file atomically.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

// MagicBytes identifies a valid .seg snapshot file.
const (
	MagicBytes    uint32 = 0x46545347
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".seg"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	EntryCount uint32
	CreatedAt  int64
	DataOffset int64
	DataSize   int64
}

// Entry is one key/value pair of a dictionary snapshot.
type Entry struct {
	Key   string `json:"k"`
	Value []byte `json:"v"`
}

// Writer serialises dictionary entries into segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// FileName returns the segment file name used for the named dictionary.
func FileName(name string) string {
	return fmt.Sprintf("%x%s", name, FileExt)
}

// Write atomically replaces the snapshot of the named dictionary. It writes
// to a .tmp file first and renames on success. An empty entry list still
// produces a file so that a cleared dictionary stays cleared after restart.
func (w *Writer) Write(name string, entries []Entry) (string, error) {
	finalPath := filepath.Join(w.dataDir, FileName(name))
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling entries for %q: %w", name, err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		EntryCount: uint32(len(entries)),
		CreatedAt:  time.Now().Unix(),
		DataOffset: int64(HeaderSize),
		DataSize:   int64(len(data)),
	}
	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], header.Magic)
	binary.LittleEndian.PutUint32(headerBytes[4:8], header.Version)
	binary.LittleEndian.PutUint32(headerBytes[8:12], header.EntryCount)
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(header.CreatedAt))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(header.DataOffset))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(header.DataSize))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("writing entries: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(footer[4:8], header.EntryCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DataOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DataSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}
