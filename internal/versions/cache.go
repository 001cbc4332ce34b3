// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package versions

import "sync"

var (
	// Per-instance version lists. Lives only in process memory.
	cache     = map[string][]Version{}
	cacheLock sync.RWMutex
)

func getCached(instance string) []Version {
	cacheLock.RLock()
	defer cacheLock.RUnlock()
	return cache[instance]
}

func setCached(instance string, v []Version) {
	cacheLock.Lock()
	defer cacheLock.Unlock()
	cache[instance] = v
}

// ClearCache drops every cached list (primarily for testing).
func ClearCache() {
	cacheLock.Lock()
	defer cacheLock.Unlock()
	cache = map[string][]Version{}
}
