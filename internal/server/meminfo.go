package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// availableMemMB reads MemAvailable from a /proc/meminfo style file and
// returns it in megabytes. Local models are memory-hungry; admitting a
// session on a starved host trades one slow answer for an OOM-killed one.
func availableMemMB(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, fmt.Errorf("unparseable MemAvailable line %q: %w", line, err)
		}
		return kb / 1024, nil
	}
	return 0, fmt.Errorf("no MemAvailable line in %s", path)
}
