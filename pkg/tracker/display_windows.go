//go:build windows

package tracker

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/kbinani/screenshot"
)

var (
	procMonitorFromWindow = user32.NewProc("MonitorFromWindow")
	procGetMonitorInfoW   = user32.NewProc("GetMonitorInfoW")
)

const monitorDefaultToNearest = 2

type win32Rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfo struct {
	Size      uint32
	Monitor   win32Rect
	WorkArea  win32Rect
	Flags     uint32
}

// Win32DisplayLocator resolves the display containing a window handle by
// matching MonitorFromWindow's rectangle against
// screenshot.GetDisplayBounds, reusing the same display-index scheme
// ScreenshotCapturer already uses for DisplayID.
type Win32DisplayLocator struct{}

// DisplayContaining returns the decimal display index containing hwnd.
func (Win32DisplayLocator) DisplayContaining(hwnd uintptr) (string, error) {
	if hwnd == 0 {
		return "", fmt.Errorf("tracker: no window handle available")
	}

	hmon, _, _ := procMonitorFromWindow.Call(hwnd, monitorDefaultToNearest)
	if hmon == 0 {
		return "", fmt.Errorf("tracker: MonitorFromWindow returned no monitor")
	}

	var info monitorInfo
	info.Size = uint32(unsafe.Sizeof(info))
	ret, _, _ := procGetMonitorInfoW.Call(hmon, uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return "", fmt.Errorf("tracker: GetMonitorInfoW failed")
	}

	for i := 0; i < screenshot.NumActiveDisplays(); i++ {
		b := screenshot.GetDisplayBounds(i)
		if int32(b.Min.X) == info.Monitor.Left && int32(b.Min.Y) == info.Monitor.Top {
			return strconv.Itoa(i), nil
		}
	}
	return "0", nil
}
