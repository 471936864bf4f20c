package sync

// MergeOutcome is the decision for one field of one record.
type MergeOutcome int

const (
	// MergeNoop: remote matches the snapshot, nothing changed externally.
	// Local drift, if any, is an un-pushed local edit and is not ours to
	// touch on the inbound path.
	MergeNoop MergeOutcome = iota
	// MergeApplyRemote: clean external update, write remote and advance
	// the snapshot.
	MergeApplyRemote
	// MergeConverged: both sides changed to the same value independently.
	// Advance the snapshot, leave the record alone.
	MergeConverged
	// MergeConflict: both sides diverged to different values. Record a
	// conflict, mutate nothing.
	MergeConflict
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeNoop:
		return "noop"
	case MergeApplyRemote:
		return "apply_remote"
	case MergeConverged:
		return "converged"
	case MergeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Merge runs the three-way comparison against the last synchronized
// snapshot. A never-synced field passes base as the empty string, which
// makes the first inbound value a clean apply unless the local side
// already holds a different non-empty value.
//
// The decision is commutative with stale deliveries: replaying a
// notification whose remote value is already the snapshot is a noop.
func Merge(base, local, remote string) MergeOutcome {
	if remote == base {
		return MergeNoop
	}
	if local == base {
		return MergeApplyRemote
	}
	if remote == local {
		return MergeConverged
	}
	return MergeConflict
}
