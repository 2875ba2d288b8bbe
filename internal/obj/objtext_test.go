package obj_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/teaching-isa/internal/obj"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := &obj.File{
		Symbols: []obj.Symbol{
			{Name: "UND", SectionID: 0, IsSection: true},
			{Name: "text", SectionID: 1, IsSection: true},
			{Name: "x", SectionID: 1, Global: true, Value: 4},
		},
		Sections: []obj.Section{
			{Name: "UND"},
			{
				Name:  "text",
				Bytes: []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
				Relocations: []obj.Relocation{
					{Offset: 4, SymbolID: 2},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, obj.Write(&buf, f))

	got, err := obj.Read(&buf)
	require.NoError(t, err)

	require.Len(t, got.Symbols, 3)
	assert.Equal(t, "x", got.Symbols[2].Name)
	assert.True(t, got.Symbols[2].Global)
	assert.EqualValues(t, 4, got.Symbols[2].Value)

	require.Len(t, got.Sections, 2)
	assert.Equal(t, f.Sections[1].Bytes, got.Sections[1].Bytes)
	require.Len(t, got.Sections[1].Relocations, 1)
	assert.EqualValues(t, 4, got.Sections[1].Relocations[0].Offset)
	assert.Equal(t, 2, got.Sections[1].Relocations[0].SymbolID)
}

func TestReadRejectsMalformedHeader(t *testing.T) {
	_, err := obj.Read(bytes.NewBufferString("not an object file\n"))
	assert.Error(t, err)
}
