package asmtext_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/teaching-isa/internal/asmtext"
	"github.com/Manu343726/teaching-isa/internal/assembler"
)

func TestAssembleMinimalHalt(t *testing.T) {
	src := `
.section text
halt
.end
`
	a := assembler.New("t")
	require.NoError(t, asmtext.Assemble(strings.NewReader(src), a))

	f := a.File()
	idx := f.FindSection("text")
	require.NotEqual(t, -1, idx)
	assert.Equal(t, []byte{0, 0, 0, 0}, f.Sections[idx].Bytes)
}

func TestAssembleCrossFileExternSource(t *testing.T) {
	dataSrc := `
.global x
.section data
x:
.word 7
.end
`
	codeSrc := `
.extern x
.section code
ld x, %r2
halt
.end
`
	dataAsm := assembler.New("a")
	require.NoError(t, asmtext.Assemble(strings.NewReader(dataSrc), dataAsm))

	codeAsm := assembler.New("b")
	require.NoError(t, asmtext.Assemble(strings.NewReader(codeSrc), codeAsm))

	df := dataAsm.File()
	xID := df.FindSymbol("x")
	require.NotEqual(t, -1, xID)
	assert.True(t, df.Symbols[xID].Global)

	cf := codeAsm.File()
	idx := cf.FindSection("code")
	require.NotEqual(t, -1, idx)
	assert.NotEmpty(t, cf.Sections[idx].Relocations)
}
