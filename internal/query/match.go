package query

import (
	"github.com/ignitedb/ignite/internal/dataset"
	"github.com/ignitedb/ignite/pkg/schema"
)

// materializeMatch copies a scored row's attribute tuple and any
// blob-pool referenced cells out of the owning shard, so the returned
// Match is independent of the source segment or chunk once Execute
// returns (spec §4.9 step 5 "a schema transform that replaces in-sorter
// blob-pool pointers with standalone copies").
func (ex *Executor) materializeMatch(_ *dataset.Snapshot, sm scoredRow) Match {
	row := sm.Shard.RowBytes(sm.RowID)
	rowCopy := append([]byte(nil), row...)

	m := Match{DocID: ex.Schema.DocID(rowCopy), Weight: sm.Weight, Row: rowCopy}

	offsets := ex.Schema.Offsets()
	for i, a := range ex.Schema.Attributes {
		if !a.Type.IsBlobRef() || offsets[i] < 0 {
			continue
		}
		ref := schema.GetBlobRef(rowCopy, offsets[i])
		if ref.Length == 0 {
			continue
		}
		blob := sm.Shard.BlobAt(ref)
		if m.Blobs == nil {
			m.Blobs = make(map[int][]byte)
		}
		m.Blobs[i] = append([]byte(nil), blob...)
	}

	return m
}
