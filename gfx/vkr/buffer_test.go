// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"encoding/binary"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/koru3d/engine/gfx/vkr"
	"github.com/koru3d/engine/gfx/vkr/vkrtest"
)

func TestBufferWrite(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	b, err := vkr.NewBuffer(f.device, 8, vkr.BufferUsageUniform)
	c.Assert(err, qt.IsNil)
	defer b.Destroy()
	c.Assert(b.Size(), qt.Equals, uint64(8))
	c.Assert(b.Usage(), qt.Equals, vkr.BufferUsageUniform)

	c.Assert(b.Write(2, []byte{1, 2, 3}), qt.IsNil)
	c.Assert(b.Write(6, []byte{9, 9}), qt.IsNil)
	c.Assert(f.driver.Memory(b.Memory()), qt.DeepEquals, []byte{0, 0, 1, 2, 3, 0, 9, 9})
	c.Assert(f.driver.Count("UnmapMemory"), qt.Equals, 2)

	tests := []struct {
		offset uint64
		size   int
	}{
		{0, 9},
		{7, 2},
		{9, 0},
		{math.MaxUint64, 1},
	}
	for _, test := range tests {
		err := b.Write(test.offset, make([]byte, test.size))
		c.Assert(err, qt.ErrorIs, vkr.ErrOutOfRange, qt.Commentf("%+v", test))
	}
	c.Assert(b.Write(8, nil), qt.IsNil)
	c.Assert(f.driver.Count("MapMemory"), qt.Equals, 2)
}

func TestBufferFromSlice(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	type vertex struct {
		X, Y float32
	}
	b, err := vkr.NewBufferFromSlice(f.device, vkr.BufferUsageVertex, []vertex{{1, 2}, {3, 4}})
	c.Assert(err, qt.IsNil)
	defer b.Destroy()
	c.Assert(b.Size(), qt.Equals, uint64(16))

	mem := f.driver.Memory(b.Memory())
	for i, want := range []float32{1, 2, 3, 4} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(mem[i*4:]))
		c.Assert(got, qt.Equals, want)
	}

	c.Assert(vkr.WriteSlice(b, 8, []uint16{0xbeef}), qt.IsNil)
	c.Assert(f.driver.Memory(b.Memory())[8:10], qt.DeepEquals, []byte{0xef, 0xbe})
	c.Assert(vkr.WriteSlice(b, 12, []uint64{1}), qt.ErrorIs, vkr.ErrOutOfRange)

	layout := vkr.VertexLayout{
		Stride: 8,
		Attributes: []vkr.VertexAttribute{
			{Location: 0, Format: vkr.FormatR32G32Sfloat},
		},
	}
	c.Assert(layout.VertexCount(b), qt.Equals, uint32(2))
	c.Assert(vkr.VertexLayout{}.VertexCount(b), qt.Equals, uint32(0))
}

func TestBufferLifetime(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, vkrtest.New())

	_, err := vkr.NewBuffer(f.device, 0, vkr.BufferUsageVertex)
	c.Assert(err, qt.ErrorMatches, "vkr: zero sized buffer")
	_, err = vkr.NewBufferFromSlice[float32](f.device, vkr.BufferUsageVertex, nil)
	c.Assert(err, qt.ErrorMatches, "vkr: zero sized buffer")

	f.driver.Script("CreateBuffer", vkr.ErrorOutOfDeviceMemory)
	_, err = vkr.NewBuffer(f.device, 4, vkr.BufferUsageVertex)
	c.Assert(err, qt.ErrorIs, vkr.ErrOutOfDeviceMemory)

	f.driver.Script("MapMemory", vkr.ErrorMemoryMapFailed)
	_, err = vkr.NewBufferFromSlice(f.device, vkr.BufferUsageVertex, []byte{1})
	c.Assert(err, qt.ErrorMatches, `vkr: map memory: vk.MapMemory\(\): ERROR_MEMORY_MAP_FAILED`)
	c.Assert(f.driver.Live(vkrtest.KindBuffer, vkrtest.KindMemory), qt.Equals, 0)

	b, err := vkr.NewBuffer(f.device, 4, vkr.BufferUsageIndex)
	c.Assert(err, qt.IsNil)
	b.Destroy()
	b.Destroy()
	c.Assert(b.Write(0, []byte{1}), qt.ErrorIs, vkr.ErrDestroyed)
	c.Assert(f.driver.Live(vkrtest.KindBuffer, vkrtest.KindMemory), qt.Equals, 0)
}
