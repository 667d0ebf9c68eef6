package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sample() *Schema {
	return &Schema{
		DocIDAttr: "id",
		Attributes: []Attribute{
			{Name: "id", Type: AttrInt64},
			{Name: "price", Type: AttrUint32},
			{Name: "title", Type: AttrString},
		},
		Fields: []Field{{Name: "title", WeightBucket: 1}},
	}
}

func TestRowStrideSumsCellWidths(t *testing.T) {
	s := sample()
	// int64(8) + uint32(4) + blob-ref(16) == 28
	require.Equal(t, 28, s.RowStride())
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	s1 := sample()
	s2 := sample()
	require.Equal(t, s1.Fingerprint(), s2.Fingerprint())

	s3 := sample()
	s3.Attributes[1].Type = AttrInt64
	require.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())
}

func TestCloneIsIndependent(t *testing.T) {
	s := sample()
	clone := s.Clone()
	clone.Attributes[0].Name = "changed"
	require.Equal(t, "id", s.Attributes[0].Name)
}

func TestAttrIndexAndFieldIndex(t *testing.T) {
	s := sample()
	require.Equal(t, 1, s.AttrIndex("price"))
	require.Equal(t, -1, s.AttrIndex("missing"))
	require.Equal(t, 0, s.FieldIndex("title"))
}
