// Package versions discovers the API versions an instance supports.
package versions

import (
	"strconv"
	"strings"
)

// Version is one entry of GET /services/data/.
type Version struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Less orders versions numerically, so "9.0" sorts before "50.0".
func (v Version) Less(o Version) bool {
	am, an := split(v.Version)
	bm, bn := split(o.Version)
	if am != bm {
		return am < bm
	}
	return an < bn
}

func split(s string) (int, int) {
	major, minor, _ := strings.Cut(strings.TrimPrefix(s, "v"), ".")
	a, _ := strconv.Atoi(major)
	b, _ := strconv.Atoi(minor)
	return a, b
}
