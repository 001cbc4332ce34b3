package bulk

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"bulkctl/cli/internal/errors"
)

// NullValue marks a field to be set to null in Bulk API 2.0 CSV data.
const NullValue = "#N/A"

// Marker columns added by the service to v2 result payloads.
const (
	ColumnID      = "sf__Id"
	ColumnCreated = "sf__Created"
	ColumnError   = "sf__Error"
)

var columnDelimiters = map[string]rune{
	"COMMA":     ',',
	"TAB":       '\t',
	"SEMICOLON": ';',
	"PIPE":      '|',
	"CARET":     '^',
	"BACKQUOTE": '`',
}

// DelimiterRune maps a v2 columnDelimiter name to its character. An empty
// name means COMMA.
func DelimiterRune(name string) (rune, error) {
	if name == "" {
		return ',', nil
	}
	r, ok := columnDelimiters[strings.ToUpper(name)]
	if !ok {
		return 0, errors.Newf(errors.Configuration, "unknown column delimiter %q", name)
	}
	return r, nil
}

// EncodeCSV writes records as delimited text. The header is the sorted union
// of all field names; a field missing from a record is left empty and an
// explicit nil becomes NullValue.
func EncodeCSV(records []Record, delimiter rune, crlf bool) ([]byte, error) {
	seen := map[string]struct{}{}
	var header []string
	for _, r := range records {
		for k := range r {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter
	w.UseCRLF = crlf
	if err := w.Write(header); err != nil {
		return nil, err
	}
	row := make([]string, len(header))
	for i, r := range records {
		for j, k := range header {
			v, ok := r[k]
			if !ok {
				row[j] = ""
				continue
			}
			s, err := formatValue(v)
			if err != nil {
				return nil, errors.Wrap(errors.Configuration, fmt.Sprintf("record %d field %s", i, k), err)
			}
			row[j] = s
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return NullValue, nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t), nil
	case json.Number:
		return t.String(), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// ResultSet is one v2 result stream: the payload exactly as received plus
// its parsed form.
type ResultSet struct {
	Category Category
	Raw      []byte
	Header   []string
	Rows     [][]string
}

// MarshalJSON renders the raw payload as text rather than base64.
func (s *ResultSet) MarshalJSON() ([]byte, error) {
	rows := s.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return json.Marshal(struct {
		Category Category   `json:"category"`
		Header   []string   `json:"header,omitempty"`
		Rows     [][]string `json:"rows"`
		Raw      string     `json:"raw"`
	}{s.Category, s.Header, rows, string(s.Raw)})
}

func parseResultSet(cat Category, raw []byte, delimiter rune) (*ResultSet, error) {
	set := &ResultSet{Category: cat, Raw: raw}
	if len(bytes.TrimSpace(raw)) == 0 {
		return set, nil
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		return nil, &errors.E{Kind: errors.Protocol, Message: string(cat) + " results: read header", Err: err}
	}
	set.Header = header
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &errors.E{Kind: errors.Protocol, Message: string(cat) + " results: read row", Err: err}
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}

// Records views the rows as result records. Marker columns fill ID, Created
// and Errors; every other column lands in Fields.
func (s *ResultSet) Records() []ResultRecord {
	if s == nil {
		return nil
	}
	out := make([]ResultRecord, 0, len(s.Rows))
	for i, row := range s.Rows {
		rec := ResultRecord{
			Index:    i,
			Category: s.Category,
			Success:  s.Category == CategorySuccess,
			Fields:   map[string]string{},
		}
		for j, col := range s.Header {
			if j >= len(row) {
				break
			}
			switch col {
			case ColumnID:
				rec.ID = row[j]
			case ColumnCreated:
				rec.Created = strings.EqualFold(row[j], "true")
			case ColumnError:
				if row[j] != "" {
					rec.Errors = append(rec.Errors, ResultError{Message: row[j]})
				}
			default:
				rec.Fields[col] = row[j]
			}
		}
		out = append(out, rec)
	}
	return out
}
