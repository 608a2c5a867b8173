package registry

import "sync"

// AnnotationTracker maps an identity to its saved original display label while
// the identity carries a room's decorative tag. Save and restore are paired:
// an entry exists iff the tag is currently applied.
type AnnotationTracker struct {
	mu     sync.Mutex
	labels map[string]string
}

func NewAnnotationTracker() *AnnotationTracker {
	return &AnnotationTracker{labels: make(map[string]string)}
}

// Save stores the original label for an identity. If one is already saved
// (member hopping between managed rooms) the earlier original is kept, so a
// chain of transfers still restores the true original.
func (t *AnnotationTracker) Save(identityID, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.labels[identityID]; !ok {
		t.labels[identityID] = label
	}
}

// Lookup returns the saved original label without removing it.
func (t *AnnotationTracker) Lookup(identityID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label, ok := t.labels[identityID]
	return label, ok
}

// Take returns and removes the saved label. Restoration and removal are one
// operation so the tracker can never leak a restored entry.
func (t *AnnotationTracker) Take(identityID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label, ok := t.labels[identityID]
	if ok {
		delete(t.labels, identityID)
	}
	return label, ok
}

// Len returns the number of outstanding annotations.
func (t *AnnotationTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.labels)
}
