// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	"github.com/koru3d/engine/gfx"
)

// Image is either an OwnedImage or a DeferredImage.
type Image interface {
	gfx.Destroyable

	Handle() Handle
	View() Handle
	Format() Format

	image()
}

// OwnedImage owns its image, the memory behind it and its view.
type OwnedImage struct {
	device *Device
	handle Handle
	memory Handle
	view   Handle
	format Format
	extent gfx.Extent2D
}

// NewOwnedImage creates an image with its own device memory and a view.
func NewOwnedImage(device *Device, format Format, extent gfx.Extent2D, usage ImageUsage) (*OwnedImage, error) {
	driver := device.driver
	handle, memory, err := driver.CreateImage(device.handle, ImageCreateInfo{
		Format: format,
		Extent: extent,
		Usage:  usage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create image")
	}
	view, err := driver.CreateImageView(device.handle, ImageViewCreateInfo{
		Image:  handle,
		Format: format,
		Depth:  format.IsDepth(),
	})
	if err != nil {
		driver.DestroyImage(device.handle, handle)
		driver.FreeMemory(device.handle, memory)
		return nil, errors.Wrap(err, "vkr: create image view")
	}
	return &OwnedImage{
		device: device,
		handle: handle,
		memory: memory,
		view:   view,
		format: format,
		extent: extent,
	}, nil
}

func (*OwnedImage) image() {}

// Handle returns the native image.
func (i *OwnedImage) Handle() Handle { return i.handle }

// View returns the native image view.
func (i *OwnedImage) View() Handle { return i.view }

// Format returns the image format.
func (i *OwnedImage) Format() Format { return i.format }

// Extent returns the image size.
func (i *OwnedImage) Extent() gfx.Extent2D { return i.extent }

// Memory returns the native memory bound to the image.
func (i *OwnedImage) Memory() Handle { return i.memory }

// Destroy releases the view, the image and its memory.
func (i *OwnedImage) Destroy() {
	if i.handle == NullHandle {
		return
	}
	driver := i.device.driver
	driver.DestroyImageView(i.device.handle, i.view)
	driver.DestroyImage(i.device.handle, i.handle)
	driver.FreeMemory(i.device.handle, i.memory)
	i.handle, i.memory, i.view = NullHandle, NullHandle, NullHandle
}

// DeferredImage wraps an image owned by someone else, such as the
// presentation engine, and owns only its view.
type DeferredImage struct {
	device *Device
	handle Handle
	view   Handle
	format Format
}

// NewDeferredImage creates a view over an image it does not own.
func NewDeferredImage(device *Device, image Handle, format Format) (*DeferredImage, error) {
	view, err := device.driver.CreateImageView(device.handle, ImageViewCreateInfo{
		Image:  image,
		Format: format,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkr: create image view")
	}
	return &DeferredImage{
		device: device,
		handle: image,
		view:   view,
		format: format,
	}, nil
}

func (*DeferredImage) image() {}

// Handle returns the native image.
func (i *DeferredImage) Handle() Handle { return i.handle }

// View returns the native image view.
func (i *DeferredImage) View() Handle { return i.view }

// Format returns the image format.
func (i *DeferredImage) Format() Format { return i.format }

// Destroy releases the view only.
func (i *DeferredImage) Destroy() {
	if i.view == NullHandle {
		return
	}
	i.device.driver.DestroyImageView(i.device.handle, i.view)
	i.view = NullHandle
}
