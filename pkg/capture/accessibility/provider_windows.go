//go:build windows

package accessibility

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	coinitApartmentThreaded = 0x2
	coinitDisableOle1DDE    = 0x4

	// UIA_NamePropertyId / UIA_ValueValuePropertyId / UIA_HelpTextPropertyId,
	// the three properties walked for text content.
	propName     = 30005
	propValue    = 30045
	propHelpText = 30013
)

// UIAWalkerProvider walks the Windows UI Automation tree rooted at a
// window handle on a dedicated STA thread, grounded in waddle's
// pkg/capture/uia.Marshaler request/response pattern: every COM call
// must run on the same apartment-threaded goroutine, so Walk dispatches
// through a channel instead of calling COM directly.
type UIAWalkerProvider struct {
	requests chan walkRequest
	quit     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	granted  atomic.Bool
}

type walkRequest struct {
	hwnd     uintptr
	maxDepth int
	reply    chan walkReply
}

type walkReply struct {
	snapshot Snapshot
	err      error
}

// NewUIAWalkerProvider starts the dedicated STA thread and returns a
// ready-to-use provider. Callers must call Close when done.
func NewUIAWalkerProvider() *UIAWalkerProvider {
	p := &UIAWalkerProvider{
		requests: make(chan walkRequest, 32),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.granted.Store(true)
	p.wg.Add(1)
	go p.staThread()
	return p
}

func (p *UIAWalkerProvider) staThread() {
	defer p.wg.Done()
	defer close(p.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, coinitApartmentThreaded|coinitDisableOle1DDE); err != nil {
		p.drainWithError(fmt.Errorf("accessibility: CoInitializeEx: %w", err))
		return
	}
	defer ole.CoUninitialize()

	automation, err := oleutil.CreateObject("CUIAutomation")
	if err != nil {
		p.granted.Store(false)
		p.drainWithError(ErrPermissionDenied{})
		return
	}
	defer automation.Release()

	iuia, err := automation.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		p.granted.Store(false)
		p.drainWithError(ErrPermissionDenied{})
		return
	}
	defer iuia.Release()

	for {
		select {
		case req := <-p.requests:
			snap, werr := p.walkOnSTA(iuia, req.hwnd, req.maxDepth)
			req.reply <- walkReply{snapshot: snap, err: werr}
		case <-p.quit:
			p.drainWithError(fmt.Errorf("accessibility: provider closed"))
			return
		}
	}
}

func (p *UIAWalkerProvider) drainWithError(err error) {
	for {
		select {
		case req := <-p.requests:
			req.reply <- walkReply{err: err}
		default:
			return
		}
	}
}

// walkOnSTA performs the actual COM tree walk; must run on the STA
// thread. ElementFromHandle + a bounded-depth recursive descent via
// IUIAutomationTreeWalker.GetFirstChildElement / GetNextSiblingElement,
// collecting Name/Value/HelpText off each element.
func (p *UIAWalkerProvider) walkOnSTA(iuia *ole.IDispatch, hwnd uintptr, maxDepth int) (Snapshot, error) {
	defer func() {
		if r := recover(); r != nil {
			// COM calls into third-party UI trees can panic on malformed
			// elements; recovered here so one bad window never wedges the
			// dedicated STA thread.
		}
	}()

	rootVar, err := oleutil.CallMethod(iuia, "ElementFromHandle", int64(hwnd))
	if err != nil {
		return Snapshot{}, fmt.Errorf("accessibility: ElementFromHandle: %w", err)
	}
	root := rootVar.ToIDispatch()
	if root == nil {
		return Snapshot{}, fmt.Errorf("accessibility: ElementFromHandle returned no element")
	}
	defer root.Release()

	walkerVar, err := oleutil.CallMethod(iuia, "get_ControlViewWalker")
	if err != nil {
		return Snapshot{}, fmt.Errorf("accessibility: get_ControlViewWalker: %w", err)
	}
	walker := walkerVar.ToIDispatch()
	if walker == nil {
		return Snapshot{}, fmt.Errorf("accessibility: ControlViewWalker unavailable")
	}
	defer walker.Release()

	var snippets []string
	var url string
	collectElement(root, &snippets, &url)
	descend(walker, root, 1, maxDepth, &snippets, &url)

	return Snapshot{TextSnippets: snippets, BrowserURL: url}, nil
}

func descend(walker, node *ole.IDispatch, depth, maxDepth int, snippets *[]string, url *string) {
	if depth >= maxDepth {
		return
	}
	childVar, err := oleutil.CallMethod(walker, "GetFirstChildElement", node)
	if err != nil {
		return
	}
	child := childVar.ToIDispatch()
	for child != nil {
		collectElement(child, snippets, url)
		descend(walker, child, depth+1, maxDepth, snippets, url)

		nextVar, err := oleutil.CallMethod(walker, "GetNextSiblingElement", child)
		child.Release()
		if err != nil {
			return
		}
		child = nextVar.ToIDispatch()
	}
}

func collectElement(el *ole.IDispatch, snippets *[]string, url *string) {
	for _, propID := range []int{propName, propValue, propHelpText} {
		v, err := oleutil.CallMethod(el, "GetCurrentPropertyValue", propID)
		if err != nil {
			continue
		}
		text := v.ToString()
		if text == "" {
			continue
		}
		*snippets = append(*snippets, text)
		if *url == "" && looksLikeURL(text) {
			*url = text
		}
	}
}

func looksLikeURL(s string) bool {
	return len(s) > 8 && (hasPrefix(s, "http://") || hasPrefix(s, "https://"))
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Walk dispatches a tree-walk request to the dedicated STA thread and
// blocks for its reply, bounded by a fixed timeout matching waddle's
// Marshaler.GetWindowInfo 10-second ceiling.
func (p *UIAWalkerProvider) Walk(hwnd uintptr, maxDepth int) (Snapshot, error) {
	reply := make(chan walkReply, 1)
	select {
	case p.requests <- walkRequest{hwnd: hwnd, maxDepth: maxDepth, reply: reply}:
	case <-p.done:
		return Snapshot{}, fmt.Errorf("accessibility: provider closed")
	}

	select {
	case r := <-reply:
		return r.snapshot, r.err
	case <-p.done:
		return Snapshot{}, fmt.Errorf("accessibility: provider closed while walking")
	case <-time.After(10 * time.Second):
		return Snapshot{}, fmt.Errorf("accessibility: walk timed out")
	}
}

// PermissionGranted reports whether the last COM initialization attempt
// succeeded.
func (p *UIAWalkerProvider) PermissionGranted() bool { return p.granted.Load() }

// Close stops the dedicated STA thread and releases COM resources.
func (p *UIAWalkerProvider) Close() error {
	close(p.quit)
	p.wg.Wait()
	return nil
}
