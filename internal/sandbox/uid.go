package sandbox

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// uidModulus is the M in UID(owner_id) = 1000 + (H(owner_id) mod M); chosen
// to be prime-adjacent so the mapping spreads evenly across the UID space.
const uidModulus = 2_147_483_147

// UIDMap deterministically and lazily maps owner ids to Linux UIDs. Once
// assigned, an owner's UID never changes for the process lifetime.
type UIDMap struct {
	mu sync.Mutex
	m  map[string]int
}

// NewUIDMap builds an empty map.
func NewUIDMap() *UIDMap {
	return &UIDMap{m: make(map[string]int)}
}

// UID returns the UID for ownerID, assigning one on first use.
func (u *UIDMap) UID(ownerID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if uid, ok := u.m[ownerID]; ok {
		return uid
	}
	uid := deriveUID(ownerID)
	u.m[ownerID] = uid
	return uid
}

func deriveUID(ownerID string) int {
	sum := sha256.Sum256([]byte(ownerID))
	h := binary.BigEndian.Uint32(sum[:4])
	return 1000 + int(h%uidModulus)
}
