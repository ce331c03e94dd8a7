package pack

import (
	"encoding/binary"
	"fmt"

	verrors "github.com/illarion/dirvault/internal/errors"
)

const (
	// MaxFiles is the largest file count whose size table length fits in one byte.
	MaxFiles = 31
	// MaxNameLen is the largest name a one-byte length prefix can describe.
	MaxNameLen = 255

	sizeFieldLen = 8
)

// PlainFile is one file of a vault directory held in memory.
type PlainFile struct {
	Name     string
	Contents []byte
}

// EntrySize returns the number of bytes the file occupies in the data region.
func (f PlainFile) EntrySize() uint64 {
	return uint64(len(f.Name)) + 1 + uint64(len(f.Contents))
}

// Encode packs files, in order, into a single blob.
func Encode(files []PlainFile) ([]byte, error) {
	if len(files) > MaxFiles {
		return nil, fmt.Errorf("%w: %d files, at most %d can be packed", verrors.ErrCapacity, len(files), MaxFiles)
	}

	total := 1 + len(files)*sizeFieldLen
	for _, f := range files {
		if len(f.Name) == 0 {
			return nil, fmt.Errorf("%w: empty file name", verrors.ErrFormat)
		}
		if len(f.Name) > MaxNameLen {
			return nil, fmt.Errorf("%w: name %q is %d bytes, at most %d allowed", verrors.ErrCapacity, f.Name, len(f.Name), MaxNameLen)
		}
		total += int(f.EntrySize())
	}

	out := make([]byte, 0, total)
	out = append(out, byte(len(files)*sizeFieldLen))
	for _, f := range files {
		out = binary.LittleEndian.AppendUint64(out, f.EntrySize())
	}
	for _, f := range files {
		out = append(out, byte(len(f.Name)))
		out = append(out, f.Name...)
		out = append(out, f.Contents...)
	}

	return out, nil
}

// Decode unpacks a blob produced by Encode. The returned contents alias blob.
func Decode(blob []byte) ([]PlainFile, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", verrors.ErrFormat)
	}

	tableLen := int(blob[0])
	if tableLen%sizeFieldLen != 0 {
		return nil, fmt.Errorf("%w: size table length %d is not a multiple of %d", verrors.ErrFormat, tableLen, sizeFieldLen)
	}
	if 1+tableLen > len(blob) {
		return nil, fmt.Errorf("%w: size table of %d bytes exceeds blob of %d bytes", verrors.ErrFormat, tableLen, len(blob))
	}

	table := blob[1 : 1+tableLen]
	data := blob[1+tableLen:]

	files := make([]PlainFile, 0, tableLen/sizeFieldLen)
	for off := 0; off < len(table); off += sizeFieldLen {
		size := binary.LittleEndian.Uint64(table[off : off+sizeFieldLen])
		if size == 0 {
			return nil, fmt.Errorf("%w: entry %d has zero size", verrors.ErrFormat, off/sizeFieldLen)
		}
		if size > uint64(len(data)) {
			return nil, fmt.Errorf("%w: entry %d of %d bytes overruns remaining %d bytes", verrors.ErrFormat, off/sizeFieldLen, size, len(data))
		}

		entry := data[:size]
		data = data[size:]

		nameLen := int(entry[0])
		if nameLen == 0 || 1+nameLen > len(entry) {
			return nil, fmt.Errorf("%w: entry %d has invalid name length %d", verrors.ErrFormat, off/sizeFieldLen, nameLen)
		}

		files = append(files, PlainFile{
			Name:     string(entry[1 : 1+nameLen]),
			Contents: entry[1+nameLen:],
		})
	}

	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after last entry", verrors.ErrFormat, len(data))
	}

	return files, nil
}
