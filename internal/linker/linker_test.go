package linker_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/teaching-isa/internal/assembler"
	"github.com/Manu343726/teaching-isa/internal/asmtext"
	"github.com/Manu343726/teaching-isa/internal/linker"
	"github.com/Manu343726/teaching-isa/internal/obj"
)

func assembleSrc(t *testing.T, name, src string) *obj.File {
	t.Helper()
	a := assembler.New(name)
	require.NoError(t, asmtext.Assemble(strings.NewReader(src), a))
	return a.File()
}

func TestTwoPlacementsNonAdjacent(t *testing.T) {
	a := &obj.File{
		Name: "a",
		Sections: []obj.Section{
			{Name: "UND"},
			{Name: "a", Bytes: []byte{1, 2, 3, 4, 5, 6}},
		},
	}
	b := &obj.File{
		Name: "b",
		Sections: []obj.Section{
			{Name: "UND"},
			{Name: "b", Bytes: []byte{7, 8}},
		},
	}

	blocks, err := linker.Place([]*obj.File{a, b}, []linker.Placement{
		{Section: "a", Base: 0x1000},
		{Section: "b", Base: 0x2000},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, linker.WriteHexImage(&buf, blocks))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1000: 01 02 03 04 05 06 00 00", lines[0])
	assert.Equal(t, "2000: 07 08 00 00 00 00 00 00", lines[1])
}

func TestOverlapRejected(t *testing.T) {
	a := &obj.File{
		Name: "a",
		Sections: []obj.Section{
			{Name: "UND"},
			{Name: "a", Bytes: make([]byte, 16)},
		},
	}
	b := &obj.File{
		Name: "b",
		Sections: []obj.Section{
			{Name: "UND"},
			{Name: "b", Bytes: make([]byte, 4)},
		},
	}

	_, err := linker.Place([]*obj.File{a, b}, []linker.Placement{
		{Section: "a", Base: 0x1000},
		{Section: "b", Base: 0x1008},
	})
	assert.Error(t, err)
}

func TestCrossFileExternResolution(t *testing.T) {
	dataFile := assembleSrc(t, "data", `
.global x
.section data
x:
.word 7
.end
`)
	codeFile := assembleSrc(t, "code", `
.extern x
.section code
ld x, %r2
halt
.end
`)

	blocks, err := linker.Link([]*obj.File{dataFile, codeFile}, []linker.Placement{
		{Section: "data", Base: 0x1000},
		{Section: "code", Base: 0x2000},
	})
	require.NoError(t, err)

	var block *linker.Block
	for i := range blocks {
		if blocks[i].Name == "data" {
			block = &blocks[i]
		}
	}
	require.NotNil(t, block)
	assert.EqualValues(t, 7, block.Bytes[0])
}

func TestUndefinedExternIsFatal(t *testing.T) {
	codeFile := assembleSrc(t, "code", `
.extern missing
.section code
ld missing, %r2
halt
.end
`)

	_, err := linker.Link([]*obj.File{codeFile}, []linker.Placement{
		{Section: "code", Base: 0x1000},
	})
	assert.Error(t, err)
}

func TestMinimalHaltLinkedImage(t *testing.T) {
	f := assembleSrc(t, "minimal", `
.section text
halt
.end
`)

	blocks, err := linker.Link([]*obj.File{f}, []linker.Placement{
		{Section: "text", Base: 0x40000000},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, uint32(0x40000000), blocks[0].Base)
	assert.Equal(t, []byte{0, 0, 0, 0}, blocks[0].Bytes)
}

func TestUnpinnedSectionPlacedAfterPinnedBlocks(t *testing.T) {
	f := assembleSrc(t, "mix", `
.section text
halt
.end
`)
	f.Sections = append(f.Sections, obj.Section{Name: "extra", Bytes: []byte{9, 9}})

	blocks, err := linker.Place([]*obj.File{f}, []linker.Placement{
		{Section: "text", Base: 0x1000},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "extra", blocks[1].Name)
	assert.Equal(t, blocks[0].Base+uint32(len(blocks[0].Bytes)), blocks[1].Base)
}
