// Package sink writes job results: JSON summaries, v1 outcomes as CSV and the
// raw v2 result payloads exactly as Salesforce returned them.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bulkctl/cli/internal/bulk"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecordsCSV writes result records with one row per submitted record.
func WriteRecordsCSV(w io.Writer, recs []bulk.ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "category", "success", "created", "id", "errors"}); err != nil {
		return err
	}
	for _, r := range recs {
		msgs := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			m := e.Message
			if e.StatusCode != "" {
				m = e.StatusCode + ": " + m
			}
			msgs = append(msgs, m)
		}
		row := []string{
			strconv.Itoa(r.Index),
			string(r.Category),
			strconv.FormatBool(r.Success),
			strconv.FormatBool(r.Created),
			r.ID,
			strings.Join(msgs, "; "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRowsCSV writes query rows with the sorted union of their fields as header.
func WriteRowsCSV(w io.Writer, rows []bulk.Record) error {
	out, err := bulk.EncodeCSV(rows, ',', false)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// WriteResultSets stores each v2 result stream byte for byte as
// <dir>/<jobID>-<category>.csv and returns the paths written. Missing sets
// are skipped.
func WriteResultSets(dir, jobID string, sets ...*bulk.ResultSet) ([]string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	var paths []string
	for _, s := range sets {
		if s == nil {
			continue
		}
		p := filepath.Join(dir, jobID+"-"+fileSuffix(s.Category)+".csv")
		if err := os.WriteFile(p, s.Raw, 0o600); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func fileSuffix(c bulk.Category) string {
	if c == bulk.CategorySuccess {
		return "successful"
	}
	return string(c)
}
