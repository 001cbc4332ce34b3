package source

import (
	"database/sql/driver"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bulkctl/cli/internal/bulk"
	"bulkctl/cli/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSONArray(t *testing.T) {
	recs, err := ReadJSON(strings.NewReader(`  [{"Name":"Acme","Employees":12}, {"Name":"Globex","Rating":null}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Acme", recs[0]["Name"])
	assert.Equal(t, json.Number("12"), recs[0]["Employees"])
	v, ok := recs[1]["Rating"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestReadJSONLines(t *testing.T) {
	in := "\xEF\xBB\xBF{\"Id\":\"001A\"}\n{\"Id\":\"001B\"}\n\n{\"Id\":\"001C\"}\n"
	recs, err := ReadJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "001C", recs[2]["Id"])
}

func TestReadJSONEmptyAndInvalid(t *testing.T) {
	recs, err := ReadJSON(strings.NewReader(" \n"))
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = ReadJSON(strings.NewReader(`{"Id":"1"}` + "\n" + `{"Id":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"Name":"a"}]`), 0o600))
	recs, err := ReadJSONFile(path)
	require.NoError(t, err)
	assert.Equal(t, []bulk.Record{{"Name": "a"}}, recs)

	_, err = ReadJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, errors.Configuration))
}

type valuer string

func (v valuer) Value() (driver.Value, error) { return string(v) + ".00", nil }

func TestNormalize(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("CET", 3600))

	assert.Equal(t, id.String(), normalize([16]byte(id)))
	assert.Equal(t, `\xdeadbeef`, normalize([]byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Equal(t, "2024-05-06T06:08:09Z", normalize(ts))
	assert.Equal(t, "12.00", normalize(valuer("12")))
	assert.Equal(t, []any{id.String(), int64(3)}, normalize([]any{[16]byte(id), int64(3)}))
	assert.Nil(t, normalize(nil))
	assert.Equal(t, "plain", normalize("plain"))
}
