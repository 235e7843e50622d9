package flatfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readRecords loads a record file: header, then count fixed-size
// records of recordSize bytes each. A missing file yields no records.
func readRecords(path string, recordSize int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var hdr fileHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	records := make([][]byte, 0, hdr.RecordCount)
	for i := uint32(0); i < hdr.RecordCount; i++ {
		rec := make([]byte, recordSize)
		if _, err := io.ReadFull(f, rec); err != nil {
			return nil, fmt.Errorf("reading record %d of %s: %w", i, path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeRecords atomically rewrites a record file: temp file in the same
// directory, then rename.
func writeRecords(path string, records [][]byte) error {
	var buf bytes.Buffer
	hdr := fileHeader{RecordCount: uint32(len(records))}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	for _, rec := range records {
		buf.Write(rec)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}
