//go:build windows

// Package usbnative implements efex.Backend directly on the Windows
// WinUSB driver via golang.org/x/sys/windows, avoiding a libusb
// dependency on platforms that ship WinUSB natively. It self-registers
// under efex.BackendPlatformNative.
package usbnative

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/YuzukiTsuru/libefex/efex"
)

func init() {
	efex.RegisterBackend(efex.BackendPlatformNative, func() efex.Backend {
		return &backend{}
	})
}

var (
	modwinusb = windows.NewLazySystemDLL("winusb.dll")

	procWinUsbInitialize = modwinusb.NewProc("WinUsb_Initialize")
	procWinUsbFree       = modwinusb.NewProc("WinUsb_Free")
	procWinUsbReadPipe   = modwinusb.NewProc("WinUsb_ReadPipe")
	procWinUsbWritePipe  = modwinusb.NewProc("WinUsb_WritePipe")
	procWinUsbQueryInterfaceSettings = modwinusb.NewProc("WinUsb_QueryInterfaceSettings")
	procWinUsbQueryPipe              = modwinusb.NewProc("WinUsb_QueryPipe")
)

const (
	usbEndpointDirectionMask = 0x80
	usbEndpointTypeMask      = 0x03
	usbEndpointTypeBulk      = 0x02
)

// usbInterfaceDescriptor mirrors USB_INTERFACE_DESCRIPTOR.
type usbInterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	Interface         uint8
}

// usbPipeInformation mirrors WINUSB_PIPE_INFORMATION.
type usbPipeInformation struct {
	PipeType          uint32
	PipeID            uint8
	MaximumPacketSize uint16
	Interval          uint8
}

type backend struct{}

type handle struct {
	file   windows.Handle
	winusb uintptr
}

// Scan locates the first WinUSB-bound device exposing VendorID/ProductID
// and opens it. Device-path discovery follows the SetupAPI
// GetClassDevs/EnumDeviceInterfaces/GetDeviceInterfaceDetail sequence;
// devicePath is resolved once via findDevicePath.
func (b *backend) Scan() (efex.BackendHandle, *efex.Error) {
	path, err := findDevicePath(efex.VendorID, efex.ProductID)
	if err != nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBDeviceNotFound, Err: err}
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBOpen, Err: err}
	}
	file, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBOpen, Err: err}
	}

	var winusb uintptr
	r0, _, e1 := syscall.SyscallN(procWinUsbInitialize.Addr(), uintptr(file), uintptr(unsafe.Pointer(&winusb)))
	if r0 == 0 {
		windows.CloseHandle(file)
		return nil, &efex.Error{Op: "Scan", Kind: efex.KindUSBOpen, Err: e1}
	}

	return &handle{file: file, winusb: winusb}, nil
}

// Init queries the default interface setting's pipe list for the
// single bulk IN and single bulk OUT endpoint. WinUSB replaces the
// kernel driver at bind time, so there is no explicit detach step.
func (b *backend) Init(h efex.BackendHandle) (uint8, uint8, *efex.Error) {
	hd, ok := h.(*handle)
	if !ok {
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindInvalidParam}
	}

	var ifaceDesc usbInterfaceDescriptor
	r0, _, e1 := syscall.SyscallN(
		procWinUsbQueryInterfaceSettings.Addr(),
		hd.winusb, 0,
		uintptr(unsafe.Pointer(&ifaceDesc)),
	)
	if r0 == 0 {
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: e1}
	}

	var epIn, epOut uint8
	var foundIn, foundOut bool
	for i := uint8(0); i < ifaceDesc.NumEndpoints; i++ {
		var pipe usbPipeInformation
		r0, _, e1 := syscall.SyscallN(
			procWinUsbQueryPipe.Addr(),
			hd.winusb, 0, uintptr(i),
			uintptr(unsafe.Pointer(&pipe)),
		)
		if r0 == 0 {
			return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: e1}
		}
		if usbPipeType(pipe.PipeType) != usbEndpointTypeBulk {
			continue
		}
		if pipe.PipeID&usbEndpointDirectionMask != 0 {
			if !foundIn {
				epIn, foundIn = pipe.PipeID, true
			}
		} else if !foundOut {
			epOut, foundOut = pipe.PipeID, true
		}
	}
	if !foundIn || !foundOut {
		return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindUSBInit, Err: fmt.Errorf("no bulk in/out endpoint pair found")}
	}
	return epIn, epOut, nil
}

func usbPipeType(t uint32) uint32 { return t & usbEndpointTypeMask }

func (b *backend) Exit(h efex.BackendHandle) *efex.Error {
	hd, ok := h.(*handle)
	if !ok {
		return &efex.Error{Op: "Exit", Kind: efex.KindInvalidParam}
	}
	if hd.winusb != 0 {
		syscall.SyscallN(procWinUsbFree.Addr(), hd.winusb)
	}
	if hd.file != windows.InvalidHandle && hd.file != 0 {
		windows.CloseHandle(hd.file)
	}
	return nil
}

func (b *backend) BulkSend(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	hd, ok := h.(*handle)
	if !ok {
		return &efex.Error{Op: "BulkSend", Kind: efex.KindInvalidState}
	}
	var transferred uint32
	var dataPtr unsafe.Pointer
	if len(buf) > 0 {
		dataPtr = unsafe.Pointer(&buf[0])
	}
	r0, _, e1 := syscall.SyscallN(
		procWinUsbWritePipe.Addr(),
		hd.winusb, uintptr(ep), uintptr(dataPtr), uintptr(len(buf)),
		uintptr(unsafe.Pointer(&transferred)), 0,
	)
	if r0 == 0 {
		return &efex.Error{Op: "BulkSend", Kind: efex.KindUSBTransfer, Err: e1}
	}
	if int(transferred) != len(buf) {
		return &efex.Error{Op: "BulkSend", Kind: efex.KindUSBTransfer, Err: fmt.Errorf("short write: %d of %d", transferred, len(buf))}
	}
	return nil
}

func (b *backend) BulkRecv(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	hd, ok := h.(*handle)
	if !ok {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindInvalidState}
	}
	var transferred uint32
	var dataPtr unsafe.Pointer
	if len(buf) > 0 {
		dataPtr = unsafe.Pointer(&buf[0])
	}
	r0, _, e1 := syscall.SyscallN(
		procWinUsbReadPipe.Addr(),
		hd.winusb, uintptr(ep), uintptr(dataPtr), uintptr(len(buf)),
		uintptr(unsafe.Pointer(&transferred)), 0,
	)
	if r0 == 0 {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTransfer, Err: e1}
	}
	if int(transferred) != len(buf) {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTransfer, Err: fmt.Errorf("short read: %d of %d", transferred, len(buf))}
	}
	return nil
}
