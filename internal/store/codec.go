package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/lumenviz/chronicle/record"
)

// Record file format: a single framed blob.
//
//	header:  magic(4) | version(2) | reserved(2) | bodyLen(4)
//	body:    JSON-encoded record.Record
//	trailer: CRC32C(4) over header+body
//
// The format is versioned explicitly so a schema change fails loudly at load
// time instead of silently decoding garbage.
const (
	fileMagic   = 0x43565243 // "CVRC", Chronicle Visual ReCord
	fileVersion = 1
	headerSize  = 12 // magic(4) + version(2) + reserved(2) + bodyLen(4)
	crcSize     = 4
	maxBodySize = 64 << 20 // 64 MB per record file
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt is returned when a record blob fails structural validation
// (bad magic, truncation, length overflow, or CRC mismatch). No partial
// record is ever returned alongside it.
var ErrCorrupt = errors.New("store: corrupt record file")

// Encode serializes a record into the framed binary format.
func Encode(r *record.Record) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("store: marshal record: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("store: record body too large (%d bytes, max %d)", len(body), maxBodySize)
	}

	buf := make([]byte, headerSize+len(body)+crcSize)
	binary.BigEndian.PutUint32(buf[0:4], fileMagic)
	binary.BigEndian.PutUint16(buf[4:6], fileVersion)
	// buf[6:8] reserved = 0
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(body))) //nolint:gosec // bounded by maxBodySize check above
	copy(buf[headerSize:], body)

	h := crc32.New(crc32cTable)
	_, _ = h.Write(buf[:headerSize+len(body)])
	binary.BigEndian.PutUint32(buf[headerSize+len(body):], h.Sum32())

	return buf, nil
}

// Decode deserializes a framed blob back into a record. Any structural
// damage yields ErrCorrupt; an unsupported version is its own error so
// callers can distinguish "damaged" from "too new".
func Decode(data []byte) (*record.Record, error) {
	if len(data) < headerSize+crcSize {
		return nil, fmt.Errorf("%w: truncated (%d bytes)", ErrCorrupt, len(data))
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	if magic != fileMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrCorrupt, magic)
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version != fileVersion {
		return nil, fmt.Errorf("store: unsupported record version %d", version)
	}
	bodyLen := binary.BigEndian.Uint32(data[8:12])
	if bodyLen > maxBodySize {
		return nil, fmt.Errorf("%w: body length %d exceeds limit", ErrCorrupt, bodyLen)
	}
	if int(headerSize+bodyLen+crcSize) != len(data) {
		return nil, fmt.Errorf("%w: length mismatch (header says %d-byte body, file is %d bytes)", ErrCorrupt, bodyLen, len(data))
	}

	frameEnd := headerSize + int(bodyLen)
	h := crc32.New(crc32cTable)
	_, _ = h.Write(data[:frameEnd])
	if got, want := binary.BigEndian.Uint32(data[frameEnd:]), h.Sum32(); got != want {
		return nil, fmt.Errorf("%w: crc mismatch (got 0x%08X, want 0x%08X)", ErrCorrupt, got, want)
	}

	var r record.Record
	if err := json.Unmarshal(data[headerSize:frameEnd], &r); err != nil {
		return nil, fmt.Errorf("store: unmarshal record: %w", err)
	}
	steps := append([][]record.Unit{r.Initial}, r.Steps...)
	for _, step := range steps {
		for _, u := range step {
			if !u.Kind.Valid() {
				return nil, fmt.Errorf("store: record contains unknown kind %q", u.Kind)
			}
		}
	}
	return &r, nil
}
