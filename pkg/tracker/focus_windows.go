//go:build windows

package tracker

import (
	"syscall"
	"time"
	"unsafe"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")

	procOpenProcess                = kernel32.NewProc("OpenProcess")
	procQueryFullProcessImageNameW = kernel32.NewProc("QueryFullProcessImageNameW")
	procCloseHandle                = kernel32.NewProc("CloseHandle")
)

const (
	processQueryLimitedInformation = 0x1000
	maxPath                        = 260
)

// PollingFocusSource detects focus changes by sampling
// GetForegroundWindow on a ticker and reporting once the foreground
// window has been stable for a debounce window, grounded in waddle's
// pkg/tracker/window.go Poller.
type PollingFocusSource struct {
	events chan FocusEvent
	quit   chan struct{}
}

// NewFocusSource starts a PollingFocusSource. Callers must call Close.
func NewFocusSource() FocusSource {
	p := &PollingFocusSource{
		events: make(chan FocusEvent, 16),
		quit:   make(chan struct{}),
	}
	go p.poll()
	return p
}

func (p *PollingFocusSource) poll() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	defer close(p.events)

	var (
		lastHwnd        syscall.Handle
		stableSince     time.Time
		reportedHwnd    syscall.Handle
	)
	stableSince = time.Now()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			current := getForegroundWindow()
			if current != lastHwnd {
				lastHwnd = current
				stableSince = time.Now()
				continue
			}
			if time.Since(stableSince) < time.Second || current == reportedHwnd {
				continue
			}
			pid := getWindowThreadProcessID(current)
			name := getProcessExecName(pid)
			reportedHwnd = current

			select {
			case p.events <- FocusEvent{Timestamp: time.Now(), Handle: uintptr(current), PID: pid, ProcessName: name}:
			default:
			}
		}
	}
}

// Events returns the channel of debounced focus changes.
func (p *PollingFocusSource) Events() <-chan FocusEvent { return p.events }

// Close stops the poller; Events() closes once the goroutine exits.
func (p *PollingFocusSource) Close() error {
	close(p.quit)
	return nil
}

func getForegroundWindow() syscall.Handle {
	ret, _, _ := procGetForegroundWindow.Call()
	return syscall.Handle(ret)
}

func getWindowThreadProcessID(hwnd syscall.Handle) uint32 {
	var pid uint32
	procGetWindowThreadProcessId.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&pid)))
	return pid
}

func getProcessExecName(pid uint32) string {
	handle, _, _ := procOpenProcess.Call(uintptr(processQueryLimitedInformation), 0, uintptr(pid))
	if handle == 0 {
		return "unknown"
	}
	defer procCloseHandle.Call(handle)

	buf := make([]uint16, maxPath*2)
	size := uint32(len(buf))
	ret, _, _ := procQueryFullProcessImageNameW.Call(handle, 0, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if ret == 0 {
		return "unknown"
	}
	return baseName(syscall.UTF16ToString(buf[:size]))
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '\\' || path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
