package model

// RecordChange pairs the old and new version of a listing.
type RecordChange struct {
	Before ListingRecord `json:"before"`
	After  ListingRecord `json:"after"`
}

// RunDiff is the difference between two runs of the same query,
// keyed by listing identifier.
type RunDiff struct {
	BaseRunID   int64 `json:"base_run_id"`
	TargetRunID int64 `json:"target_run_id"`

	Added     []ListingRecord `json:"added"`
	Removed   []ListingRecord `json:"removed"`
	Changed   []RecordChange  `json:"changed"`
	Unchanged int             `json:"unchanged"`
}

// HasChanges reports whether anything was added, removed or changed.
func (d *RunDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// DiffRuns compares target against base. Added and Changed follow the
// order of target's records, Removed the order of base's.
func DiffRuns(base, target *SearchRun) *RunDiff {
	d := &RunDiff{
		BaseRunID:   base.ID,
		TargetRunID: target.ID,
		Added:       []ListingRecord{},
		Removed:     []ListingRecord{},
		Changed:     []RecordChange{},
	}

	before := make(map[string]ListingRecord, len(base.Records))
	for _, r := range base.Records {
		before[r.Identifier] = r
	}
	seen := make(map[string]bool, len(target.Records))

	for _, r := range target.Records {
		seen[r.Identifier] = true
		old, ok := before[r.Identifier]
		switch {
		case !ok:
			d.Added = append(d.Added, r)
		case old.Fingerprint() != r.Fingerprint():
			d.Changed = append(d.Changed, RecordChange{Before: old, After: r})
		default:
			d.Unchanged++
		}
	}
	for _, r := range base.Records {
		if !seen[r.Identifier] {
			d.Removed = append(d.Removed, r)
		}
	}
	return d
}
