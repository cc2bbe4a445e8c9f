package registry

import (
	"sort"

	"golang.org/x/mod/semver"
)

// SortVersions orders version history entries by semantic version, oldest
// first. A plain string sort would misplace 1.10.0 before 1.9.0.
func SortVersions(entries []VersionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return semver.Compare("v"+entries[i].Number, "v"+entries[j].Number) < 0
	})
}
