//go:build windows

package capture

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                      = syscall.NewLazyDLL("user32.dll")
	procEnumWindows             = user32.NewProc("EnumWindows")
	procGetWindowRect           = user32.NewProc("GetWindowRect")
	procIsWindowVisible         = user32.NewProc("IsWindowVisible")
	procGetWindowTextW          = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
)

type win32Rect struct {
	Left, Top, Right, Bottom int32
}

// Win32WindowEnumerator lists on-screen top-level windows via the Win32
// EnumWindows callback, front-to-back as the OS already maintains
// z-order, grounded in waddle's pkg/tracker/window.go syscall style.
type Win32WindowEnumerator struct{}

// NewWin32WindowEnumerator returns a ready-to-use enumerator.
func NewWin32WindowEnumerator() *Win32WindowEnumerator { return &Win32WindowEnumerator{} }

// EnumerateWindows lists visible top-level windows; displayID is
// currently unused since EnumWindows is not per-display, matching the
// source's own single-desktop enumeration scope.
func (Win32WindowEnumerator) EnumerateWindows(displayID string) ([]WindowInfo, error) {
	var windows []WindowInfo
	cb := syscall.NewCallback(func(hwnd syscall.Handle, lparam uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd))
		if visible == 0 {
			return 1 // continue enumeration
		}

		var rect win32Rect
		ret, _, _ := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&rect)))
		if ret == 0 {
			return 1
		}
		w, h := int(rect.Right-rect.Left), int(rect.Bottom-rect.Top)
		if w <= 0 || h <= 0 {
			return 1
		}

		title := windowTitle(hwnd)
		if title == "" {
			return 1
		}

		var pid uint32
		procGetWindowThreadProcessID.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&pid)))
		bundleID := processImagePath(pid)

		windows = append(windows, WindowInfo{
			Handle:      uintptr(hwnd),
			Bounds:      Rect{X: int(rect.Left), Y: int(rect.Top), W: w, H: h},
			OwnerPID:    int(pid),
			AppBundleID: bundleID,
			AppName:     bundleID,
			Title:       title,
		})
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return windows, nil
}

func windowTitle(hwnd syscall.Handle) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

func processImagePath(pid uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(handle)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return ""
	}
	return syscall.UTF16ToString(buf[:size])
}
