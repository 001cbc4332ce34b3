// Package source reads records to upload: JSON files (an array of objects or
// one object per line) and Postgres query results.
package source

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/errors"
)

// ReadJSON decodes records from r. Numbers keep their literal text
// (json.Number) so ids and amounts are not rounded through float64.
func ReadJSON(r io.Reader) ([]bulk.Record, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "read records", err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	if first == '[' {
		var out []bulk.Record
		if err := dec.Decode(&out); err != nil {
			return nil, errors.Wrap(errors.Configuration, "decode record array", err)
		}
		return out, nil
	}

	var out []bulk.Record
	for line := 1; ; line++ {
		var rec bulk.Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(errors.Configuration, "decode record "+strconv.Itoa(line), err)
		}
		out = append(out, rec)
	}
}

// ReadJSONFile opens path and reads it with ReadJSON. "-" reads stdin.
func ReadJSONFile(path string) ([]bulk.Record, error) {
	if path == "-" {
		return ReadJSON(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "open records file", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF: // whitespace and a UTF-8 BOM
			continue
		}
		return b, br.UnreadByte()
	}
}
