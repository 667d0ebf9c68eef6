package segment

import "github.com/cespare/xxhash/v2"

// infixLengths are the n-gram lengths the bloom filter indexes
// (spec §3 "Infix bloom filter ... n-grams of lengths 2 and 4").
var infixLengths = [2]int{2, 4}

// BuildInfixBloom computes the per-checkpoint bloom bits for one
// checkpoint's keyword set, sized wordsPerEntry*2 64-bit words
// (spec §3: "checkpoint_count × 8 × 2 64-bit words" — 8 here is the
// default wordsPerEntry, configurable via dictionaryOptions.BloomPerEntry).
func BuildInfixBloom(keywords [][]byte, wordsPerEntry int, hashes uint8) []uint64 {
	bits := make([]uint64, wordsPerEntry*2)
	if len(bits) == 0 {
		return bits
	}
	totalBits := uint64(len(bits) * 64)

	for _, kw := range keywords {
		for _, n := range infixLengths {
			for i := 0; i+n <= len(kw); i++ {
				setBloomGram(bits, kw[i:i+n], hashes, totalBits)
			}
		}
	}
	return bits
}

// InfixMayMatch tests whether a checkpoint's bloom bits might contain
// infix, pruning impossible checkpoints before a linear scan
// (spec §4.9 "Prefix and infix expansion": "infix ... prunes candidate
// checkpoints via the bloom filter before walking").
func InfixMayMatch(bits []uint64, infix []byte, hashes uint8) bool {
	if len(bits) == 0 {
		return true // no bloom built (e.g. numeric dict); caller must scan.
	}
	totalBits := uint64(len(bits) * 64)
	return testBloomGram(bits, infix, hashes, totalBits)
}

func setBloomGram(bits []uint64, gram []byte, hashes uint8, totalBits uint64) {
	h1, h2 := doubleHash(gram)
	for i := uint8(0); i < hashes; i++ {
		bit := (h1 + uint64(i)*h2) % totalBits
		bits[bit/64] |= 1 << (bit % 64)
	}
}

func testBloomGram(bits []uint64, gram []byte, hashes uint8, totalBits uint64) bool {
	h1, h2 := doubleHash(gram)
	for i := uint8(0); i < hashes; i++ {
		bit := (h1 + uint64(i)*h2) % totalBits
		if bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// doubleHash derives the two base values for Kirsch-Mitzenmacher double
// hashing from two xxhash digests, one of the input and one of the input
// with a fixed salt appended, so the bloom filter's k probes need no
// second hash function.
func doubleHash(b []byte) (uint64, uint64) {
	sum := xxhash.Sum64(b)
	h1 := sum
	h2 := xxhash.Sum64String(string(b) + "\x00salt")
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
