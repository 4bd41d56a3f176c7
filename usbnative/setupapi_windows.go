//go:build windows

package usbnative

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// guidDevinterfaceWinUSB is the device interface GUID WinUSB-bound
// devices expose.
var guidDevinterfaceWinUSB = windows.GUID{
	Data1: 0xDEE824EF,
	Data2: 0x729B,
	Data3: 0x4A0E,
	Data4: [8]byte{0x9C, 0x14, 0xB7, 0x11, 0x7D, 0x33, 0xA8, 0x17},
}

const (
	digcfPresent         = 0x00000002
	digcfDeviceInterface = 0x00000010

	errorNoMoreItems = 259
)

var (
	modsetupapi = windows.NewLazySystemDLL("setupapi.dll")

	procSetupDiGetClassDevsW             = modsetupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces      = modsetupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW = modsetupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiDestroyDeviceInfoList     = modsetupapi.NewProc("SetupDiDestroyDeviceInfoList")
)

type spDevinfoData struct {
	cbSize    uint32
	ClassGUID windows.GUID
	DevInst   uint32
	Reserved  uintptr
}

type spDeviceInterfaceData struct {
	cbSize             uint32
	InterfaceClassGUID windows.GUID
	Flags              uint32
	Reserved           uintptr
}

type spDeviceInterfaceDetailData struct {
	cbSize     uint32
	DevicePath [1]uint16
}

func setupDiGetClassDevs(classGUID *windows.GUID, flags uint32) (windows.Handle, error) {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiGetClassDevsW.Addr(),
		uintptr(unsafe.Pointer(classGUID)),
		0, 0,
		uintptr(flags),
	)
	handle := windows.Handle(r0)
	if handle == windows.InvalidHandle {
		return handle, e1
	}
	return handle, nil
}

func setupDiEnumDeviceInterfaces(devInfoSet windows.Handle, guid *windows.GUID, memberIndex uint32, out *spDeviceInterfaceData) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiEnumDeviceInterfaces.Addr(),
		uintptr(devInfoSet), 0,
		uintptr(unsafe.Pointer(guid)),
		uintptr(memberIndex),
		uintptr(unsafe.Pointer(out)),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

func setupDiGetDeviceInterfaceDetail(devInfoSet windows.Handle, ifaceData *spDeviceInterfaceData, detail *spDeviceInterfaceDetailData, detailSize uint32, requiredSize *uint32) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiGetDeviceInterfaceDetailW.Addr(),
		uintptr(devInfoSet),
		uintptr(unsafe.Pointer(ifaceData)),
		uintptr(unsafe.Pointer(detail)),
		uintptr(detailSize),
		uintptr(unsafe.Pointer(requiredSize)),
		0,
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

func setupDiDestroyDeviceInfoList(devInfoSet windows.Handle) {
	syscall.SyscallN(procSetupDiDestroyDeviceInfoList.Addr(), uintptr(devInfoSet))
}

// findDevicePath walks the WinUSB device interface class looking for a
// device path encoding the given VID/PID, matching the "vid_XXXX&pid_XXXX"
// substring Windows embeds in every USB device interface path.
func findDevicePath(vid, pid uint16) (string, error) {
	devInfoSet, err := setupDiGetClassDevs(&guidDevinterfaceWinUSB, digcfPresent|digcfDeviceInterface)
	if err != nil {
		return "", fmt.Errorf("SetupDiGetClassDevs: %w", err)
	}
	defer setupDiDestroyDeviceInfoList(devInfoSet)

	needle := strings.ToLower(fmt.Sprintf("vid_%04x&pid_%04x", vid, pid))

	for i := uint32(0); ; i++ {
		var ifaceData spDeviceInterfaceData
		ifaceData.cbSize = uint32(unsafe.Sizeof(ifaceData))

		if err := setupDiEnumDeviceInterfaces(devInfoSet, &guidDevinterfaceWinUSB, i, &ifaceData); err != nil {
			if errno, ok := err.(syscall.Errno); ok && errno == errorNoMoreItems {
				break
			}
			continue
		}

		var requiredSize uint32
		setupDiGetDeviceInterfaceDetail(devInfoSet, &ifaceData, nil, 0, &requiredSize)
		if requiredSize == 0 {
			continue
		}

		detailBuf := make([]byte, requiredSize)
		detailData := (*spDeviceInterfaceDetailData)(unsafe.Pointer(&detailBuf[0]))
		if unsafe.Sizeof(uintptr(0)) == 8 {
			detailData.cbSize = 8
		} else {
			detailData.cbSize = 6
		}

		if err := setupDiGetDeviceInterfaceDetail(devInfoSet, &ifaceData, detailData, requiredSize, nil); err != nil {
			continue
		}

		path := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(&detailData.DevicePath[0])))
		if strings.Contains(strings.ToLower(path), needle) {
			return path, nil
		}
	}

	return "", fmt.Errorf("no WinUSB device matching vid=%04x pid=%04x", vid, pid)
}
