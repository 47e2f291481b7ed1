package mux

// Immutable snapshot collection of sources. Mutations allocate a fresh
// backing array and never touch a previously published set, so any reader
// holding a snapshot iterates it without synchronization.
type sourceSet []Source

var emptySourceSet = sourceSet{}

// Returns a new set with the source appended. The receiver is left untouched.
func (set sourceSet) add(source Source) (newSet sourceSet) {
	newSet = make(sourceSet, len(set)+1)
	copy(newSet, set)
	newSet[len(set)] = source
	return
}

// Returns a new set without the source matching correlationID, plus the
// removed source. A miss returns the receiver unchanged and a nil source.
// Order of the untouched elements is preserved.
func (set sourceSet) remove(correlationID int64) (newSet sourceSet, removed Source) {
	index := -1
	for i, source := range set {
		if source.CorrelationID() == correlationID {
			index = i
			break
		}
	}

	if index < 0 {
		newSet = set
		return
	}

	removed = set[index]
	newSet = make(sourceSet, 0, len(set)-1)
	newSet = append(newSet, set[:index]...)
	newSet = append(newSet, set[index+1:]...)
	return
}

// First source carrying sessionID, or nil. Uniqueness of session ids among
// concurrently active sources is a caller obligation, not enforced here.
func (set sourceSet) bySessionID(sessionID int32) (found Source) {
	for _, source := range set {
		if source.SessionID() == sessionID {
			found = source
			return
		}
	}
	return
}

func (set sourceSet) contains(correlationID int64) (present bool) {
	for _, source := range set {
		if source.CorrelationID() == correlationID {
			present = true
			return
		}
	}
	return
}
