package isa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Manu343726/teaching-isa/internal/isa"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []isa.Instruction{
		{Op: isa.HaltOp, A: 0, B: 0, C: 0, D: 0},
		{Op: isa.AritOp | isa.AddMod, A: 1, B: 2, C: 3, D: 0},
		{Op: isa.LoadOp | isa.LoadMod1, A: 1, B: 0, C: 0, D: 5},
		{Op: isa.LoadOp | isa.LoadMod1, A: 1, B: 0, C: 0, D: -1},
		{Op: isa.JumpOp | isa.JmpMod3, A: 15, B: 1, C: 2, D: isa.DMin},
		{Op: isa.StoreOp | isa.StoreMod2, A: 14, B: 0, C: 13, D: -4},
		{Op: isa.JumpOp | isa.JmpMod0, A: 15, B: 0, C: 0, D: isa.DMax},
	}

	for _, want := range cases {
		encoded := isa.Encode(want)
		got := isa.Decode(encoded)
		assert.Equal(t, want, got)
	}
}

func TestSignExtend12(t *testing.T) {
	assert.Equal(t, int32(-1), isa.SignExtend12(0xFFF))
	assert.Equal(t, int32(2047), isa.SignExtend12(0x7FF))
	assert.Equal(t, int32(-2048), isa.SignExtend12(0x800))
	assert.Equal(t, int32(0), isa.SignExtend12(0x000))
}

func TestFitsSigned12(t *testing.T) {
	assert.True(t, isa.FitsSigned12(0))
	assert.True(t, isa.FitsSigned12(int64(isa.DMin)))
	assert.True(t, isa.FitsSigned12(int64(isa.DMax)))
	assert.False(t, isa.FitsSigned12(int64(isa.DMax)+1))
	assert.False(t, isa.FitsSigned12(int64(isa.DMin)-1))
	assert.False(t, isa.FitsSigned12(0x12345))
}

func TestEncodeLayout(t *testing.T) {
	ins := isa.Instruction{Op: isa.LoadOp | isa.LoadMod1, A: 1, B: 0, C: 0, D: 5}
	bytes := isa.Encode(ins)
	assert.Equal(t, isa.LoadOp|isa.LoadMod1, bytes[0])
	assert.Equal(t, byte(0x10), bytes[1]) // A=1<<4 | B=0
	assert.Equal(t, byte(0x00), bytes[2])
	assert.Equal(t, byte(0x05), bytes[3])
}
