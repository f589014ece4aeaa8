// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Buffer is a host visible, coherent buffer with its own memory.
type Buffer struct {
	device *Device
	handle Handle
	memory Handle
	size   uint64
	usage  BufferUsage
}

// NewBuffer creates, allocates and binds a new buffer.
func NewBuffer(device *Device, size uint64, usage BufferUsage) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("vkr: zero sized buffer")
	}
	handle, memory, err := device.driver.CreateBuffer(device.handle, size, usage)
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create buffer")
	}
	return &Buffer{
		device: device,
		handle: handle,
		memory: memory,
		size:   size,
		usage:  usage,
	}, nil
}

// NewBufferFromSlice creates a buffer sized for data and copies it in.
// T must not contain pointers.
func NewBufferFromSlice[T any](device *Device, usage BufferUsage, data []T) (*Buffer, error) {
	raw := bytesOf(data)
	b, err := NewBuffer(device, uint64(len(raw)), usage)
	if err != nil {
		return nil, err
	}
	if err := b.Write(0, raw); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// WriteSlice copies data into b at offset. T must not contain pointers.
func WriteSlice[T any](b *Buffer, offset uint64, data []T) error {
	return b.Write(offset, bytesOf(data))
}

func bytesOf[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*int(unsafe.Sizeof(zero)))
}

// Handle returns the native buffer.
func (b *Buffer) Handle() Handle {
	return b.handle
}

// Memory returns the memory bound to the buffer.
func (b *Buffer) Memory() Handle {
	return b.memory
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Usage returns the usage the buffer was created with.
func (b *Buffer) Usage() BufferUsage {
	return b.usage
}

// Write maps the range, copies data into it and unmaps it again.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.handle == NullHandle {
		return ErrDestroyed
	}
	size := uint64(len(data))
	if offset > b.size || size > b.size-offset {
		return errors.Wrapf(ErrOutOfRange, "vkr: write of %d bytes at %d into %d", size, offset, b.size)
	}
	if size == 0 {
		return nil
	}
	mapped, err := b.device.driver.MapMemory(b.device.handle, b.memory, offset, size)
	if err != nil {
		return errors.Wrap(err, "vkr: map memory")
	}
	copy(mapped, data)
	b.device.driver.UnmapMemory(b.device.handle, b.memory)
	return nil
}

// Destroy releases the buffer and its memory.
func (b *Buffer) Destroy() {
	if b.handle == NullHandle {
		return
	}
	b.device.driver.DestroyBuffer(b.device.handle, b.handle)
	b.device.driver.FreeMemory(b.device.handle, b.memory)
	b.handle, b.memory = NullHandle, NullHandle
}

// VertexAttribute places one vertex attribute inside a vertex.
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexLayout describes how caller supplied vertices are laid out.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// VertexCount returns how many whole vertices fit in b.
func (l VertexLayout) VertexCount(b *Buffer) uint32 {
	if l.Stride == 0 {
		return 0
	}
	return uint32(b.size / uint64(l.Stride))
}
