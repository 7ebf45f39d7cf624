package launcher

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// ParseCores parses a core list such as "0-3,6" or "all". The result is
// sorted and free of duplicates.
func ParseCores(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "all" {
		cores := make([]int, runtime.NumCPU())
		for i := range cores {
			cores[i] = i
		}
		return cores, nil
	}

	var cores []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil || first < 0 {
			return nil, fmt.Errorf("invalid core %q in %q", lo, list)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(hi)
			if err != nil || last < first {
				return nil, fmt.Errorf("invalid core range %q in %q", part, list)
			}
		}
		for c := first; c <= last; c++ {
			cores = append(cores, c)
		}
	}
	slices.Sort(cores)
	return slices.Compact(cores), nil
}

// Worker is one fuzzing process of a campaign.
type Worker struct {
	Core     int
	Position int
	NumCores int
	Binary   string
}

// Plan assigns binaries to cores round robin in core order. binaries[0] is
// the campaign's main target.
func Plan(cores []int, binaries []string) []Worker {
	workers := make([]Worker, len(cores))
	for i, core := range cores {
		workers[i] = Worker{
			Core:     core,
			Position: i,
			NumCores: len(cores),
			Binary:   binaries[i%len(binaries)],
		}
	}
	return workers
}
