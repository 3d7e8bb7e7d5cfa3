package migration

import "sort"

// Sort returns a new slice of migrations sorted by Version in ascending numeric order.
// The sort is stable to preserve discovery order for equal versions.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) < 0
	})

	return sorted
}
