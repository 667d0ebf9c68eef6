package query

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/ignitedb/ignite/internal/segment"
	"github.com/ignitedb/ignite/pkg/codec"
)

// checkpointCacheSize bounds how many decoded checkpoint windows stay
// resident at once. A window is one checkpoint's worth of wordlist
// entries (spec §4.10's checkpoint_interval, 48 words by default), so
// this comfortably covers the hot dictionary range of
// several attached chunks without tying cache size to any one chunk's
// actual checkpoint count.
const checkpointCacheSize = 4096

// checkpointKey identifies one checkpoint window within one segment's
// posting list. Posting pointers are stable for a chunk's whole resident
// lifetime (spec §4.4 "immutable once saved"), so the pointer itself is a
// safe cache key; an evicted or reloaded chunk simply gets a fresh
// Posting pointer and a cold cache entry, never a stale hit.
type checkpointKey struct {
	p  *segment.Posting
	ix int
}

// checkpointEntry is one decoded wordlist entry plus the absolute
// doclist offset it resolves to, the two pieces of state scanCheckpoint
// used to recompute from the raw bytes on every call.
type checkpointEntry struct {
	Entry         codec.WordEntry
	DoclistOffset int64
}

// checkpointCache holds decoded checkpoint windows so a keyword that is
// looked up repeatedly against the same warm chunk (spec §4.6 step 4, "so
// its caches are warm") pays the wordlist-decode cost once rather than on
// every lookup.
var checkpointCache = mustNewCheckpointCache()

func mustNewCheckpointCache() *lru.Cache {
	c, err := lru.New(checkpointCacheSize)
	if err != nil {
		// Only returned for a non-positive size, which checkpointCacheSize
		// never is.
		panic(err)
	}
	return c
}

// decodeCheckpointWindow returns checkpoint ix's entries, decoding and
// caching them on a miss. A decode error is never cached, so a
// transiently corrupt read is retried rather than pinned.
func decodeCheckpointWindow(p *segment.Posting, ix int) ([]checkpointEntry, error) {
	key := checkpointKey{p: p, ix: ix}
	if cached, ok := checkpointCache.Get(key); ok {
		return cached.([]checkpointEntry), nil
	}

	cps := p.Checkpoints
	wr := p.NewWordlistReader()
	wr.Seek(cps[ix])

	offset := cps[ix].DoclistOffset
	atCheckpoint := true
	stopAt := -1
	if ix+1 < len(cps) {
		stopAt = cps[ix+1].WordlistOffset
	}

	var window []checkpointEntry
	for {
		entry, err := wr.ReadEntry(atCheckpoint)
		if err != nil {
			return nil, err
		}
		atCheckpoint = false
		offset += entry.DoclistOffsetDiff
		window = append(window, checkpointEntry{Entry: entry, DoclistOffset: offset})

		if stopAt >= 0 && wr.Offset() >= stopAt {
			break
		}
		if !wr.More() {
			break
		}
	}

	checkpointCache.Add(key, window)
	return window, nil
}

// WarmCheckpoints pre-decodes every checkpoint window in p, so the first
// real lookup against a just-saved or just-attached chunk finds its
// dictionary already in the cache instead of paying the decode cost on
// the query's critical path (spec §4.6 step 4). Best-effort: a decode
// failure here is silently skipped, since LookupWordID/LookupKeyword will
// surface the same error if and when that checkpoint is actually needed.
func WarmCheckpoints(p *segment.Posting) {
	if p == nil {
		return
	}
	for ix := range p.Checkpoints {
		_, _ = decodeCheckpointWindow(p, ix)
	}
}
