package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// record is the on-disk encoding of one wire.LogEntry: a CRC32 checksum over
// a JSON-encoded entry, preceded by its own length. Checksumming the tail
// record lets Open detect (and discard) a torn write left by a crash
// mid-append, the way bundoc's WAL segment format does for its own records.
type record struct {
	entry wire.LogEntry
}

// encode serializes a log entry as [crc32(4)][length(4)][json...].
func encode(e wire.LogEntry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("store: marshal entry: %w", err)
	}

	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)

	crc := crc32.ChecksumIEEE(buf[4:])
	binary.LittleEndian.PutUint32(buf[0:4], crc)
	return buf, nil
}

// decode reads one record from data, returning the entry and the number of
// bytes consumed. It returns errTornRecord if data is too short to contain a
// complete record (the expected shape of a crash-interrupted final write).
func decode(data []byte) (wire.LogEntry, int, error) {
	if len(data) < 8 {
		return wire.LogEntry{}, 0, errTornRecord
	}
	crc := binary.LittleEndian.Uint32(data[0:4])
	bodyLen := binary.LittleEndian.Uint32(data[4:8])
	total := 8 + int(bodyLen)
	if len(data) < total {
		return wire.LogEntry{}, 0, errTornRecord
	}

	body := data[8:total]
	if crc32.ChecksumIEEE(data[4:total]) != crc {
		return wire.LogEntry{}, 0, errTornRecord
	}

	var e wire.LogEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return wire.LogEntry{}, 0, fmt.Errorf("store: unmarshal entry: %w", err)
	}
	return e, total, nil
}
