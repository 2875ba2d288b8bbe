package assembler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/teaching-isa/internal/assembler"
	"github.com/Manu343726/teaching-isa/internal/isa"
)

func TestMinimalHalt(t *testing.T) {
	a := assembler.New("minimal")
	a.Section("text")
	a.Halt()
	a.End()

	f := a.File()
	textIdx := f.FindSection("text")
	require.NotEqual(t, -1, textIdx)
	assert.Equal(t, []byte{0, 0, 0, 0}, f.Sections[textIdx].Bytes)
}

func TestLiteralInlineDoesNotPool(t *testing.T) {
	a := assembler.New("inline")
	a.Section("text")
	a.LdImm(5, 1)
	a.End()

	f := a.File()
	textIdx := f.FindSection("text")
	require.Len(t, f.Sections[textIdx].Bytes, 4)

	ins := decode(f.Sections[textIdx].Bytes)
	assert.Equal(t, isa.LoadMod1, ins.Mode())
	assert.Equal(t, int32(5), ins.D)
}

func TestLiteralPools(t *testing.T) {
	a := assembler.New("pool")
	a.Section("text")
	a.LdImm(0x12345, 1)
	a.End()

	f := a.File()
	textIdx := f.FindSection("text")
	bytes := f.Sections[textIdx].Bytes
	require.Len(t, bytes, 8)

	ins := decode(bytes[0:4])
	assert.Equal(t, isa.LoadMod2, ins.Mode())
	assert.Equal(t, int32(0), ins.D)
	assert.Equal(t, byte(isa.PCReg), ins.C)

	assert.Equal(t, []byte{0x45, 0x23, 0x01, 0x00}, bytes[4:8])
}

func TestForwardLabelShiftedByPoolExpansion(t *testing.T) {
	a := assembler.New("shift")
	a.Section("t")
	a.LdImm(0x12345, 1)
	require.NoError(t, a.Label("lbl"))
	a.Halt()
	a.End()

	f := a.File()
	id := f.FindSymbol("lbl")
	require.NotEqual(t, -1, id)
	assert.EqualValues(t, 8, f.Symbols[id].Value)
}

func TestWordSymbolUnknownDoesNotEmitRelocation(t *testing.T) {
	a := assembler.New("wordsym")
	a.Section("data")
	require.NoError(t, a.WordSymbol("later"))
	a.End()

	f := a.File()
	idx := f.FindSection("data")
	assert.Empty(t, f.Sections[idx].Relocations)
	assert.Equal(t, []byte{0, 0, 0, 0}, f.Sections[idx].Bytes)
}

func TestWordSymbolKnownEmitsRelocation(t *testing.T) {
	a := assembler.New("wordsym2")
	a.Global("x")
	a.Section("data")
	require.NoError(t, a.WordSymbol("x"))
	a.End()

	f := a.File()
	idx := f.FindSection("data")
	require.Len(t, f.Sections[idx].Relocations, 1)
	assert.EqualValues(t, 0, f.Sections[idx].Relocations[0].Offset)
}

func TestLabelRedefinitionIsFatal(t *testing.T) {
	a := assembler.New("redefine")
	a.Section("text")
	require.NoError(t, a.Label("here"))
	err := a.Label("here")
	assert.Error(t, err)
}

func TestOffsetOutOfRangeNeverPools(t *testing.T) {
	a := assembler.New("offset")
	a.Section("text")
	err := a.StRegIndOff(1, 2, 4096)
	assert.Error(t, err)
}

func TestEndInjectsSectionSymbolsAtMatchingIndex(t *testing.T) {
	a := assembler.New("sections")
	a.Section("data")
	a.Section("text")
	a.End()

	f := a.File()
	dataID := f.FindSymbol("data")
	textID := f.FindSymbol("text")
	require.NotEqual(t, -1, dataID)
	require.NotEqual(t, -1, textID)
	assert.Equal(t, f.FindSection("data"), f.Symbols[dataID].SectionID)
	assert.Equal(t, f.FindSection("text"), f.Symbols[textID].SectionID)
}

func decode(b []byte) isa.Instruction {
	var arr [4]byte
	copy(arr[:], b)
	return isa.Decode(arr)
}
