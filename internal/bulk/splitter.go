package bulk

import "bulkctl/cli/internal/errors"

// Split partitions records into consecutive chunks of at most size records.
// Chunks share the backing array of records; the last chunk may be shorter.
func Split(records []Record, size int) ([][]Record, error) {
	if size <= 0 {
		return nil, errors.Newf(errors.Configuration, "batch size must be positive, got %d", size)
	}
	if len(records) == 0 {
		return nil, nil
	}
	out := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end:end])
	}
	return out, nil
}
