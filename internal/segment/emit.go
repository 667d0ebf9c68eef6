package segment

import "github.com/ignitedb/ignite/pkg/codec"

// EmitPostings walks an already-sorted hit list and produces the
// wordlist/doclist/hitlist streams, checkpoint array, and infix bloom for
// one segment's (or chunk's) Posting (spec §4.1, §4.3 steps 3-4). hits
// must be sorted by (word, row, position) — NumericDict mode sorts by
// WordID, WordDict mode by Keyword bytes — exactly as
// Accumulator.sortedHitsForEmit does; this is also the path the Segment
// Merger, Chunk Saver, and Optimizer build their outputs through (see
// DecodePostings and DESIGN.md, internal/merger entry) so every producer
// of a Posting shares one emission path.
func EmitPostings(mode codec.DictMode, hits []DecodedHit, checkpointEvery uint32, bloomPerEntry, bloomHashes uint8) Posting {
	ww := codec.NewWordlistWriter(mode, checkpointEvery)
	dw := codec.NewDoclistWriter()
	hw := codec.NewHitlistWriter()

	var checkpointKeywords [][]byte
	var allCheckpointKeywords [][][]byte

	doclistBase := 0
	wordIdx := uint32(0)

	flushWord := func(wordID uint64, keyword []byte, docCount, hitCount uint64, hasHitlist bool) {
		diff := int64(dw.Len()) - int64(doclistBase)
		ww.WriteEntry(codec.WordEntry{
			WordID: wordID, Keyword: keyword,
			DocCount: docCount, HitCount: hitCount,
			DoclistOffsetDiff: diff, HasHitlist: hasHitlist,
		})
		doclistBase = dw.Len()

		if checkpointEvery == 0 || wordIdx%checkpointEvery == 0 {
			checkpointKeywords = [][]byte{}
		}
		if keyword != nil {
			checkpointKeywords = append(checkpointKeywords, append([]byte(nil), keyword...))
		}
		if checkpointEvery != 0 && (wordIdx+1)%checkpointEvery == 0 {
			allCheckpointKeywords = append(allCheckpointKeywords, checkpointKeywords)
			checkpointKeywords = nil
		}
		wordIdx++
	}

	i := 0
	for i < len(hits) {
		j := i
		var curWordID uint64
		var curKeyword []byte
		if mode == codec.NumericDict {
			curWordID = hits[i].WordID
		} else {
			curKeyword = hits[i].Keyword
		}
		for j < len(hits) && sameWord(mode, hits[j], curWordID, curKeyword) {
			j++
		}
		wordHits := hits[i:j]

		dw.StartWord()
		docCount, hitCount := emitWordDocs(dw, hw, wordHits)

		flushWord(curWordID, curKeyword, uint64(docCount), uint64(hitCount), hitCount > 0)
		i = j
	}

	if len(checkpointKeywords) > 0 {
		allCheckpointKeywords = append(allCheckpointKeywords, checkpointKeywords)
	}

	var bloom []uint64
	if mode == codec.WordDict && bloomPerEntry > 0 {
		bloom = make([]uint64, 0, len(allCheckpointKeywords)*int(bloomPerEntry)*2)
		for _, kws := range allCheckpointKeywords {
			bloom = append(bloom, BuildInfixBloom(kws, int(bloomPerEntry), bloomHashes)...)
		}
	}

	return Posting{
		Mode:               mode,
		Wordlist:           ww.Buf(),
		Checkpoints:        ww.Checkpoints(),
		Doclist:            dw.Buf(),
		Hitlist:            hw.Buf(),
		InfixBloom:         bloom,
		BloomWordsPerEntry: int(bloomPerEntry),
	}
}

func sameWord(mode codec.DictMode, h DecodedHit, wordID uint64, keyword []byte) bool {
	if mode == codec.NumericDict {
		return h.WordID == wordID
	}
	return compareBytes(h.Keyword, keyword) == 0
}

// emitWordDocs groups one word's already-sorted hits by row id, emitting a
// doclist entry per row and, for rows with more than one hit, a hitlist
// span (spec §4.1 "hit_count == 1 inlines the hit position").
func emitWordDocs(dw *codec.DoclistWriter, hw *codec.HitlistWriter, hits []DecodedHit) (docCount, hitCount int) {
	i := 0
	for i < len(hits) {
		j := i
		rowID := hits[i].RowID
		for j < len(hits) && hits[j].RowID == rowID {
			j++
		}
		rowHits := hits[i:j]
		docCount++
		hitCount += len(rowHits)

		var fieldsMask uint64
		for _, h := range rowHits {
			fi, _, _ := codec.UnpackPosition(h.Pos)
			if fi >= 0 && fi < 64 {
				fieldsMask |= 1 << uint(fi)
			}
		}

		if len(rowHits) == 1 {
			dw.WriteEntry(codec.DocEntry{RowID: rowID, FieldsMask: fieldsMask, HitCount: 1, HitRef: rowHits[0].Pos})
		} else {
			hw.StartDoc()
			offset := hw.Offset()
			for _, h := range rowHits {
				hw.WritePosition(h.Pos)
			}
			dw.WriteEntry(codec.DocEntry{RowID: rowID, FieldsMask: fieldsMask, HitCount: uint32(len(rowHits)), HitRef: uint32(offset)})
		}

		i = j
	}
	return
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}
