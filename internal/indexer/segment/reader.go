package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
)

// Reader gives access to the entries of one segment file.
type Reader struct {
	filePath string
	header   SegmentHeader
	entries  []Entry
}

// OpenReader reads and verifies a segment file. A bad magic number, an
// unknown version or a checksum mismatch is an error.
func OpenReader(path string) (*Reader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	if len(raw) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("invalid segment file %s: truncated (%d bytes)", path, len(raw))
	}
	headerBytes := raw[:HeaderSize]
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		EntryCount: binary.LittleEndian.Uint32(headerBytes[8:12]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DataOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DataSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	end := header.DataOffset + header.DataSize
	if header.DataOffset < int64(HeaderSize) || end+int64(FooterSize) > int64(len(raw)) {
		return nil, fmt.Errorf("invalid segment file %s: data range out of bounds", path)
	}
	data := raw[header.DataOffset:end]
	footer := raw[end : end+int64(FooterSize)]
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(data); want != got {
		return nil, fmt.Errorf("segment %s checksum mismatch: want %08x, got %08x", path, want, got)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing entries: %w", err)
	}
	if len(entries) != int(header.EntryCount) {
		return nil, fmt.Errorf("segment %s holds %d entries, header says %d", path, len(entries), header.EntryCount)
	}
	return &Reader{filePath: path, header: header, entries: entries}, nil
}

// Entries returns the snapshot entries in the order they were written.
func (r *Reader) Entries() []Entry {
	return r.entries
}

func (r *Reader) Len() int {
	return len(r.entries)
}

func (r *Reader) Header() SegmentHeader {
	return r.header
}
