// Package webview binds the native webview library at runtime through purego,
// so no cgo toolchain is needed to build programs that embed a web page.
package webview

import (
	"encoding/json"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/abemedia/plotview/internal/binding"
)

// Hints are used to configure window sizing and resizing.
type Hint int

const (
	HintNone Hint = iota
	HintFixed
	HintMin
	HintMax
)

// WebView describes the common interface for the embedded browser window.
type WebView interface {
	Run()
	Terminate()
	Dispatch(f func())
	Destroy()
	Window() unsafe.Pointer
	SetTitle(title string)
	SetSize(w, h int, hint Hint)
	Navigate(url string)
	SetHtml(html string)
	Init(js string)
	Eval(js string)
	Bind(name string, f any) error
	Unbind(name string) error
}

// webview holds a handle to the native webview instance.
type webview struct {
	handle uintptr
}

// Native entry points, resolved once by load.
var lib struct {
	create    func(debug int32, window uintptr) uintptr
	destroy   func(w uintptr)
	run       func(w uintptr)
	terminate func(w uintptr)
	dispatch  func(w, fn, arg uintptr)
	getWindow func(w uintptr) uintptr
	setTitle  func(w uintptr, title string)
	setSize   func(w uintptr, width, height, hint int32)
	navigate  func(w uintptr, url string)
	setHtml   func(w uintptr, html string)
	init      func(w uintptr, js string)
	eval      func(w uintptr, js string)
	bind      func(w uintptr, name string, fn, arg uintptr)
	unbind    func(w uintptr, name string)
	ret       func(w uintptr, id string, status int32, result string)
}

var (
	loadOnce sync.Once
	loadErr  error

	dispatchCallbackPtr uintptr
	bindingCallbackPtr  uintptr
)

// For queued dispatch calls from other goroutines
var (
	dispatchMu      sync.Mutex
	dispatchMap     = make(map[uintptr]func())
	dispatchCounter uintptr
)

// For bound functions
type bindingEntry struct {
	fn binding.Func
	w  uintptr
}

var (
	bindMu         sync.Mutex
	bindingMap     = make(map[uintptr]bindingEntry)
	boundNames     = make(map[uintptr]map[string]uintptr)
	bindingCounter uintptr
)

// Load resolves the native library. It is called by New; calling it directly
// reports why a webview cannot be created.
func Load() error {
	loadOnce.Do(func() {
		lookup, err := openLibrary()
		if err != nil {
			loadErr = fmt.Errorf("webview: failed to load native library: %w", err)
			return
		}
		for name, fptr := range map[string]any{
			"webview_create":     &lib.create,
			"webview_destroy":    &lib.destroy,
			"webview_run":        &lib.run,
			"webview_terminate":  &lib.terminate,
			"webview_dispatch":   &lib.dispatch,
			"webview_get_window": &lib.getWindow,
			"webview_set_title":  &lib.setTitle,
			"webview_set_size":   &lib.setSize,
			"webview_navigate":   &lib.navigate,
			"webview_set_html":   &lib.setHtml,
			"webview_init":       &lib.init,
			"webview_eval":       &lib.eval,
			"webview_bind":       &lib.bind,
			"webview_unbind":     &lib.unbind,
			"webview_return":     &lib.ret,
		} {
			ptr, err := lookup(name)
			if err != nil || ptr == 0 {
				loadErr = fmt.Errorf("webview: failed to load symbol %s: %v", name, err)
				return
			}
			purego.RegisterFunc(fptr, ptr)
		}
		dispatchCallbackPtr = purego.NewCallback(dispatchCallback)
		bindingCallbackPtr = purego.NewCallback(bindingCallback)
	})
	return loadErr
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// New creates a new webview, debugging off/on, with its own native window.
func New(debug bool) WebView {
	return NewWindow(debug, nil)
}

// NewWindow creates a new webview. If `window` is non-nil, the library
// may embed the webview in the given native window handle. It returns nil if
// the native library cannot be loaded or creation fails.
func NewWindow(debug bool, window unsafe.Pointer) WebView {
	if Load() != nil {
		return nil
	}
	handle := lib.create(boolToInt(debug), uintptr(window))
	if handle == 0 {
		return nil
	}
	return &webview{handle: handle}
}

func (w *webview) Run() {
	lib.run(w.handle)
}

func (w *webview) Terminate() {
	lib.terminate(w.handle)
}

// Dispatch schedules f on the UI thread. It is safe to call from any goroutine.
func (w *webview) Dispatch(f func()) {
	dispatchMu.Lock()
	idx := dispatchCounter
	dispatchCounter++
	dispatchMap[idx] = f
	dispatchMu.Unlock()

	lib.dispatch(w.handle, dispatchCallbackPtr, idx)
}

func (w *webview) Destroy() {
	bindMu.Lock()
	for _, ctx := range boundNames[w.handle] {
		delete(bindingMap, ctx)
	}
	delete(boundNames, w.handle)
	bindMu.Unlock()

	lib.destroy(w.handle)
}

func (w *webview) Window() unsafe.Pointer {
	return unsafe.Pointer(lib.getWindow(w.handle))
}

func (w *webview) SetTitle(title string) {
	lib.setTitle(w.handle, title)
}

func (w *webview) SetSize(width, height int, hint Hint) {
	lib.setSize(w.handle, int32(width), int32(height), int32(hint))
}

func (w *webview) Navigate(url string) {
	lib.navigate(w.handle, url)
}

func (w *webview) SetHtml(html string) {
	lib.setHtml(w.handle, html)
}

func (w *webview) Init(js string) {
	lib.init(w.handle, js)
}

func (w *webview) Eval(js string) {
	lib.eval(w.handle, js)
}

// Bind registers a Go function callable from page script as window[name].
// Calls return a promise resolved with the JSON encoding of f's result.
func (w *webview) Bind(name string, f any) error {
	fn, err := binding.Wrap(f)
	if err != nil {
		return err
	}

	bindMu.Lock()
	names := boundNames[w.handle]
	if names == nil {
		names = make(map[string]uintptr)
		boundNames[w.handle] = names
	}
	if _, exists := names[name]; exists {
		bindMu.Unlock()
		return fmt.Errorf("webview: name %q already bound", name)
	}
	ctx := bindingCounter
	bindingCounter++
	bindingMap[ctx] = bindingEntry{w: w.handle, fn: fn}
	names[name] = ctx
	bindMu.Unlock()

	lib.bind(w.handle, name, bindingCallbackPtr, ctx)
	return nil
}

func (w *webview) Unbind(name string) error {
	bindMu.Lock()
	ctx, ok := boundNames[w.handle][name]
	if !ok {
		bindMu.Unlock()
		return fmt.Errorf("webview: name %q not found", name)
	}
	delete(boundNames[w.handle], name)
	delete(bindingMap, ctx)
	bindMu.Unlock()

	lib.unbind(w.handle, name)
	return nil
}

// Callbacks return uintptr so they satisfy syscall.NewCallback on Windows.

func dispatchCallback(_, arg uintptr) uintptr {
	dispatchMu.Lock()
	f, ok := dispatchMap[arg]
	delete(dispatchMap, arg)
	dispatchMu.Unlock()
	if ok {
		f()
	}
	return 0
}

func bindingCallback(idPtr, reqPtr, arg uintptr) uintptr {
	bindMu.Lock()
	entry, ok := bindingMap[arg]
	bindMu.Unlock()
	if !ok {
		return 0
	}

	id := cStringToGo(idPtr)
	status, result := encodeResult(entry.fn(cStringToGo(reqPtr)))
	lib.ret(entry.w, id, status, result)
	return 0
}

// encodeResult turns a binding result into the status and JSON payload
// expected by webview_return.
func encodeResult(v any, err error) (int32, string) {
	if err == nil {
		b, merr := json.Marshal(v)
		if merr == nil {
			return 0, string(b)
		}
		err = merr
	}
	b, _ := json.Marshal(err.Error())
	return 1, string(b)
}

func cStringToGo(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := (*byte)(unsafe.Pointer(ptr))
	var n int
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
