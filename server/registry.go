package server

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dotside-studios/nfc-bridge/mifare"
	"github.com/dotside-studios/nfc-bridge/protocol"
)

type tagEntry struct {
	tag       mifare.Tag
	scannedAt time.Time
}

// TagRegistry holds the tags of the most recent discovery keyed by UID.
// Command handlers resolve client-supplied UIDs against it; the poll loop
// replaces its contents after every scan.
type TagRegistry struct {
	mu   sync.RWMutex
	tags map[string]tagEntry
}

// NewTagRegistry creates an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		tags: make(map[string]tagEntry),
	}
}

// Update replaces the registry contents with the tags of a fresh
// discovery. Every previous entry is released: a new scan hands out new
// handles even for a tag that never left the field.
func (r *TagRegistry) Update(tags []mifare.Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for uid, entry := range r.tags {
		if err := entry.tag.Release(); err != nil {
			log.Printf("Failed to release tag %s: %v", uid, err)
		}
		delete(r.tags, uid)
	}

	now := time.Now()
	for _, tag := range tags {
		r.tags[tag.UID()] = tagEntry{tag: tag, scannedAt: now}
	}
}

// Get returns the registered tag with the given UID.
func (r *TagRegistry) Get(uid string) (mifare.Tag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tags[uid]
	return entry.tag, ok
}

// Len returns the number of registered tags.
func (r *TagRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags)
}

// Snapshot describes every registered tag in wire form, ordered by UID.
// It consults only discovery state, never the hardware.
func (r *TagRegistry) Snapshot() []protocol.TagInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uids := make([]string, 0, len(r.tags))
	for uid := range r.tags {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	infos := make([]protocol.TagInfo, 0, len(uids))
	for _, uid := range uids {
		entry := r.tags[uid]
		tech := entry.tag.Technology()
		infos = append(infos, protocol.TagInfo{
			UID:        uid,
			Type:       tech.String(),
			Technology: protocol.InferTechnology(tech.String()),
			Subtype:    ntagSubtype(tech),
			ScannedAt:  entry.scannedAt.Format(time.RFC3339),
		})
	}
	return infos
}

// Clear releases every registered tag. Used on shutdown and when the
// device goes away.
func (r *TagRegistry) Clear() {
	r.Update(nil)
}

// ntagSubtype maps an NTAG21x technology to its variant number; other
// technologies map to 0.
func ntagSubtype(t mifare.Technology) int {
	switch t {
	case mifare.TechNTAG213:
		return 213
	case mifare.TechNTAG215:
		return 215
	case mifare.TechNTAG216:
		return 216
	}
	return 0
}
