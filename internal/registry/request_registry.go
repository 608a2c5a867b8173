package registry

import (
	"sync"

	"github.com/go-warden/voice/internal/model"
	apperrors "github.com/go-warden/voice/internal/pkg/errors"
)

// RequestRegistry is the authoritative in-memory table of pending claimable
// requests, keyed by requester. The claim set-once rule lives here, under the
// registry lock, so concurrent claim attempts serialize at this choke point.
type RequestRegistry struct {
	mu       sync.RWMutex
	requests map[string]*model.PendingRequest
}

func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{requests: make(map[string]*model.PendingRequest)}
}

// Put registers a new open request. Rejects a duplicate for the same
// requester: at most one pending request per requester at a time.
func (r *RequestRegistry) Put(req *model.PendingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.RequesterID]; exists {
		return apperrors.ErrConflict
	}
	r.requests[req.RequesterID] = req.Clone()
	return nil
}

// Get returns a snapshot of the requester's pending request.
func (r *RequestRegistry) Get(requesterID string) (*model.PendingRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[requesterID]
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

// Claim atomically assigns the claimant. First writer wins: a request that
// already has a claimant returns ErrAlreadyClaimed with the original claimant
// preserved.
func (r *RequestRegistry) Claim(requesterID, claimantID string) (*model.PendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requesterID]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	if req.ClaimantID != "" {
		return nil, apperrors.ErrAlreadyClaimed.WithDetails(req.ClaimantID)
	}
	req.ClaimantID = claimantID
	return req.Clone(), nil
}

// SetMessage replaces the live informational message reference.
func (r *RequestRegistry) SetMessage(requesterID, channelID, messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requesterID]
	if !ok {
		return false
	}
	req.MessageChannelID = channelID
	req.MessageID = messageID
	return true
}

// SetResolutionRoom records the private room created on claim.
func (r *RequestRegistry) SetResolutionRoom(requesterID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requesterID]
	if !ok {
		return false
	}
	req.ResolutionRoomID = roomID
	return true
}

// Remove deletes the request unconditionally (disposition path). Returns true
// for the first remover only.
func (r *RequestRegistry) Remove(requesterID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[requesterID]; !ok {
		return false
	}
	delete(r.requests, requesterID)
	return true
}

// RemoveUnclaimed deletes the request only while it is still open. A claimed
// request cannot be abandoned; it must go through disposition.
func (r *RequestRegistry) RemoveUnclaimed(requesterID string) (*model.PendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requesterID]
	if !ok || req.ClaimantID != "" {
		return nil, false
	}
	delete(r.requests, requesterID)
	return req.Clone(), true
}

// List returns snapshots of all pending requests.
func (r *RequestRegistry) List() []*model.PendingRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.PendingRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Clone())
	}
	return out
}

// Len returns the number of pending requests.
func (r *RequestRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.requests)
}
