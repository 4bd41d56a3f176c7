// Package usbgousb implements efex.Backend on top of
// github.com/google/gousb, the cross-platform user-space libusb binding
// used elsewhere in this corpus for bulk USB Test & Measurement Class
// devices. It self-registers under efex.BackendLibusb so the core
// package never imports it directly.
package usbgousb

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/YuzukiTsuru/libefex/efex"
)

func init() {
	efex.RegisterBackend(efex.BackendLibusb, func() efex.Backend {
		return &backend{}
	})
}

// backend implements efex.Backend. It keeps the gousb.Context alive for
// the lifetime of a single scanned device, mirroring the one-shot
// single-device session model the core assumes.
type backend struct {
	ctx *gousb.Context
}

// handle is the concrete efex.BackendHandle for this backend.
type handle struct {
	device *gousb.Device
	iface  *gousb.Interface
	closer func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
}

func (b *backend) Scan() (efex.BackendHandle, *efex.Error) {
	b.ctx = gousb.NewContext()
	dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(efex.VendorID), gousb.ID(efex.ProductID))
	if err != nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBOpen, Err: err}
	}
	if dev == nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBDeviceNotFound}
	}
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBOpen, Err: err}
	}
	return &handle{device: dev}, nil
}

// Init claims the default interface and walks its current alt setting's
// endpoint descriptors to find the single bulk IN and single bulk OUT
// endpoint, per the backend's endpoint-discovery contract.
func (b *backend) Init(h efex.BackendHandle) (uint8, uint8, *efex.Error) {
	hd, ok := h.(*handle)
	if !ok {
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindInvalidParam}
	}
	iface, closer, err := hd.device.DefaultInterface()
	if err != nil {
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: err}
	}
	hd.iface = iface
	hd.closer = closer

	var epIn, epOut uint8
	var foundIn, foundOut bool
	for _, ep := range iface.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			if !foundIn {
				epIn = uint8(ep.Number)
				foundIn = true
			}
		case gousb.EndpointDirectionOut:
			if !foundOut {
				epOut = uint8(ep.Number)
				foundOut = true
			}
		}
	}
	if !foundIn || !foundOut {
		closer()
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: fmt.Errorf("no bulk in/out endpoint pair found")}
	}

	hd.in, err = iface.InEndpoint(int(epIn))
	if err != nil {
		closer()
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: err}
	}
	hd.out, err = iface.OutEndpoint(int(epOut))
	if err != nil {
		closer()
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: err}
	}
	return epIn, epOut, nil
}

func (b *backend) Exit(h efex.BackendHandle) *efex.Error {
	hd, ok := h.(*handle)
	if !ok {
		return &efex.Error{Op: "Exit", Kind: efex.KindInvalidParam}
	}
	if hd.closer != nil {
		hd.closer()
	}
	if hd.device != nil {
		if err := hd.device.Close(); err != nil {
			return &efex.Error{Op: "Exit", Kind: efex.KindUSBTransfer, Err: err}
		}
	}
	if b.ctx != nil {
		_ = b.ctx.Close()
	}
	return nil
}

func (b *backend) BulkSend(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	hd, ok := h.(*handle)
	if !ok || hd.out == nil {
		return &efex.Error{Op: "BulkSend", Kind: efex.KindInvalidState}
	}
	tctx, cancel := context.WithTimeout(context.Background(), efex.BulkTimeout)
	defer cancel()
	n, err := hd.out.WriteContext(tctx, buf)
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			return &efex.Error{Op: "BulkSend", Kind: efex.KindUSBTimeout, Err: err}
		}
		return &efex.Error{Op: "BulkSend", Kind: efex.KindUSBTransfer, Err: err}
	}
	if n != len(buf) {
		return &efex.Error{Op: "BulkSend", Kind: efex.KindUSBTransfer, Err: fmt.Errorf("short write: %d of %d", n, len(buf))}
	}
	return nil
}

func (b *backend) BulkRecv(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	hd, ok := h.(*handle)
	if !ok || hd.in == nil {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindInvalidState}
	}
	tctx, cancel := context.WithTimeout(context.Background(), efex.BulkTimeout)
	defer cancel()
	n, err := hd.in.ReadContext(tctx, buf)
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTimeout, Err: err}
		}
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTransfer, Err: err}
	}
	if n != len(buf) {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTransfer, Err: fmt.Errorf("short read: %d of %d", n, len(buf))}
	}
	return nil
}
