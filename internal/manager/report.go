package manager

import (
	"github.com/aqasim81/schemaver/internal/history"
	"github.com/aqasim81/schemaver/internal/migration"
)

// MigrationStatus pairs a resolved migration with its ledger entry, if any.
type MigrationStatus struct {
	Migration migration.Migration
	Applied   *history.Entry
}

// Report compares the resolved migrations with the ledger.
type Report struct {
	// Migrations lists every resolved migration in version order.
	Migrations []MigrationStatus
	// Pending lists resolved migrations with no ledger entry.
	Pending []migration.Migration
	// Gaps lists pending migrations ordered below the highest applied version.
	Gaps []migration.Migration
	// Unknown lists ledger entries that no resolved migration carries.
	Unknown []history.Entry
	// Modified lists applied migrations whose script changed since they ran.
	Modified []migration.Migration
}

// Consistent reports whether the ledger holds exactly the resolved versions.
// Modified scripts do not affect consistency.
func (r *Report) Consistent() bool {
	return len(r.Pending) == 0 && len(r.Unknown) == 0
}

// buildReport diffs resolved migrations (sorted, duplicate free) against the
// ledger entries.
func buildReport(resolved []migration.Migration, entries []history.Entry) *Report {
	byVersion := make(map[string]*history.Entry, len(entries))
	for i := range entries {
		byVersion[entries[i].Key()] = &entries[i]
	}

	report := &Report{}
	known := make(map[string]struct{}, len(resolved))

	var highest migration.Version

	for _, m := range resolved {
		key := m.Version.String()
		known[key] = struct{}{}

		entry, ok := byVersion[key]
		report.Migrations = append(report.Migrations, MigrationStatus{Migration: m, Applied: entry})

		if !ok {
			report.Pending = append(report.Pending, m)

			continue
		}

		if m.Version.Compare(highest) > 0 {
			highest = m.Version
		}

		if entry.Checksum != m.Checksum {
			report.Modified = append(report.Modified, m)
		}
	}

	for _, e := range entries {
		if _, ok := known[e.Key()]; !ok {
			report.Unknown = append(report.Unknown, e)
		}

		if v, err := migration.ParseVersion(e.Version); err == nil && v.Compare(highest) > 0 {
			highest = v
		}
	}

	for _, m := range report.Pending {
		if m.Version.Compare(highest) < 0 {
			report.Gaps = append(report.Gaps, m)
		}
	}

	return report
}
