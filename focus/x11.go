// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux && !nox11

package focus

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"
)

/*
#cgo LDFLAGS: -lX11 -lXtst
#include <stdlib.h>
#include <X11/Xlib.h>
#include <X11/Xatom.h>
#include <X11/Xutil.h>
#include <X11/extensions/XTest.h>

// gio_focus_client_list copies _NET_CLIENT_LIST into out, returning the
// window count, or -1 if the property is unreadable.
int gio_focus_client_list(Display *dpy, Window root, Atom prop, Window **out) {
	Atom type;
	int format;
	unsigned long nitems, after;
	unsigned char *data = NULL;
	if (XGetWindowProperty(dpy, root, prop, 0, ~0L, False, XA_WINDOW,
			&type, &format, &nitems, &after, &data) != Success || data == NULL) {
		return -1;
	}
	*out = (Window *)data;
	return (int)nitems;
}
*/
import "C"

// x11Bridge activates windows and synthesizes key events directly over
// Xlib and the XTest extension, the same cgo technique gio's own
// app/internal/window/os_x11.go uses for its windowing backend, here
// generalized to window activation/key-synthesis instead of GUI
// surface presentation.
type x11Bridge struct {
	mu   sync.Mutex
	dpy  *C.Display
	root C.Window

	netClientList C.Atom
	netWMName     C.Atom
	utf8String    C.Atom
	netActiveWin  C.Atom
	wmClassAtom   C.Atom
}

func newX11Bridge() (Bridge, error) {
	dpy := C.XOpenDisplay(nil)
	if dpy == nil {
		return nil, fmt.Errorf("focus: cannot open X display")
	}
	screen := C.XDefaultScreen(dpy)
	root := C.XRootWindow(dpy, screen)

	b := &x11Bridge{
		dpy:           dpy,
		root:          root,
		netClientList: internAtom(dpy, "_NET_CLIENT_LIST"),
		netWMName:     internAtom(dpy, "_NET_WM_NAME"),
		utf8String:    internAtom(dpy, "UTF8_STRING"),
		netActiveWin:  internAtom(dpy, "_NET_ACTIVE_WINDOW"),
		wmClassAtom:   C.Atom(C.XA_WM_CLASS),
	}
	return b, nil
}

func internAtom(dpy *C.Display, name string) C.Atom {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.XInternAtom(dpy, cname, C.False)
}

func (b *x11Bridge) Close() {
	C.XCloseDisplay(b.dpy)
}

// RequestFocus scans _NET_CLIENT_LIST for a window whose WM_CLASS
// matches target (a page's focus action carries a single string, used
// as the class; the window title is not matched), then sends a
// _NET_ACTIVE_WINDOW client message to the root window.
func (b *x11Bridge) RequestFocus(target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	class, title := target, ""
	if class == "" && title == "" {
		return fmt.Errorf("focus: empty target")
	}

	windows, err := b.clientList()
	if err != nil {
		return err
	}

	useOr := class != "" && title != "" && strings.EqualFold(class, title)

	for _, win := range windows {
		wmClass := b.getWMClass(win)
		wmTitle := b.getWindowTitle(win)

		classMatch := !useOr
		if class != "" {
			classMatch = wmClass != "" && strings.Contains(strings.ToLower(wmClass), strings.ToLower(class))
		}
		titleMatch := !useOr
		if title != "" {
			titleMatch = wmTitle != "" && strings.Contains(strings.ToLower(wmTitle), strings.ToLower(title))
		}

		matches := classMatch && titleMatch
		if useOr {
			matches = classMatch || titleMatch
		}
		if matches {
			return b.activate(win)
		}
	}
	return fmt.Errorf("focus: no window found matching %q", target)
}

func (b *x11Bridge) clientList() ([]C.Window, error) {
	var ptr *C.Window
	n := C.gio_focus_client_list(b.dpy, b.root, b.netClientList, &ptr)
	if n < 0 {
		return nil, fmt.Errorf("focus: get _NET_CLIENT_LIST failed")
	}
	defer C.XFree(unsafe.Pointer(ptr))
	windows := make([]C.Window, n)
	slice := unsafe.Slice(ptr, int(n))
	copy(windows, slice)
	return windows, nil
}

// getWMClass returns "instance.class" joined the way the daemon logs
// it, matching the original's dot-joined WM_CLASS presentation.
func (b *x11Bridge) getWMClass(win C.Window) string {
	var hint C.XClassHint
	if C.XGetClassHint(b.dpy, win, &hint) == 0 {
		return ""
	}
	instance := C.GoString(hint.res_name)
	class := C.GoString(hint.res_class)
	if hint.res_name != nil {
		C.XFree(unsafe.Pointer(hint.res_name))
	}
	if hint.res_class != nil {
		C.XFree(unsafe.Pointer(hint.res_class))
	}
	if instance == "" {
		return class
	}
	if class == "" {
		return instance
	}
	return instance + "." + class
}

func (b *x11Bridge) getWindowTitle(win C.Window) string {
	if title, ok := b.textProperty(win, b.netWMName); ok {
		return title
	}
	var name *C.char
	if C.XFetchName(b.dpy, win, &name) != 0 && name != nil {
		defer C.XFree(unsafe.Pointer(name))
		return C.GoString(name)
	}
	return ""
}

func (b *x11Bridge) textProperty(win C.Window, prop C.Atom) (string, bool) {
	var actualType C.Atom
	var actualFormat C.int
	var nitems, after C.ulong
	var data *C.uchar
	status := C.XGetWindowProperty(b.dpy, win, prop, 0, ^C.long(0)>>1, C.False, C.AnyPropertyType,
		&actualType, &actualFormat, &nitems, &after, &data)
	if status != C.Success || data == nil || nitems == 0 {
		return "", false
	}
	defer C.XFree(unsafe.Pointer(data))
	return C.GoStringN((*C.char)(unsafe.Pointer(data)), C.int(nitems)), true
}

func (b *x11Bridge) activate(win C.Window) error {
	var ev C.XClientMessageEvent
	ev._type = C.ClientMessage
	ev.window = win
	ev.message_type = b.netActiveWin
	ev.format = 32
	data := (*[5]C.long)(unsafe.Pointer(&ev.data))
	data[0] = 2 // source indication: pager
	data[1] = 0
	data[2] = 0
	data[3] = 0
	data[4] = 0

	mask := C.long(C.SubstructureRedirectMask | C.SubstructureNotifyMask)
	if C.XSendEvent(b.dpy, b.root, C.False, mask, (*C.XEvent)(unsafe.Pointer(&ev))) == 0 {
		return fmt.Errorf("focus: send _NET_ACTIVE_WINDOW failed")
	}
	C.XFlush(b.dpy)
	return nil
}

// Watch polls _NET_ACTIVE_WINDOW on the root window every 150ms and
// invokes onChange whenever the active window differs from the last
// one observed. A true PropertyNotify subscription (XSelectInput plus
// a blocking XNextEvent loop) would avoid the poll, but needs its own
// fd-select plumbing to stay responsive to stop; polling the same
// cgo/Xlib connection this bridge already holds is the simpler port.
func (b *x11Bridge) Watch(stop <-chan struct{}, onChange func(class, title string)) error {
	var last C.Window
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}
		win, ok := b.activeWindow()
		if !ok || win == last {
			continue
		}
		last = win
		onChange(b.getWMClass(win), b.getWindowTitle(win))
	}
}

func (b *x11Bridge) activeWindow() (C.Window, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var actualType C.Atom
	var actualFormat C.int
	var nitems, after C.ulong
	var data *C.uchar
	status := C.XGetWindowProperty(b.dpy, b.root, b.netActiveWin, 0, 1, C.False, C.Atom(C.XA_WINDOW),
		&actualType, &actualFormat, &nitems, &after, &data)
	if status != C.Success || data == nil || nitems == 0 {
		return 0, false
	}
	defer C.XFree(unsafe.Pointer(data))
	win := *(*C.Window)(unsafe.Pointer(data))
	return win, win != 0
}

// SendKey parses a "+"-joined combo like "ctrl+shift+z" and presses
// its keys in order, then releases them in reverse, via XTestFakeKeyEvent.
func (b *x11Bridge) SendKey(combo string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts := strings.Split(combo, "+")
	codes := make([]C.uint, 0, len(parts))
	for _, part := range parts {
		sym, err := keysymFor(part)
		if err != nil {
			return fmt.Errorf("focus: %w", err)
		}
		code := C.XKeysymToKeycode(b.dpy, C.KeySym(sym))
		if code == 0 {
			return fmt.Errorf("focus: no keycode for key %q", part)
		}
		codes = append(codes, C.uint(code))
	}

	for _, code := range codes {
		C.XTestFakeKeyEvent(b.dpy, code, C.True, 0)
		time.Sleep(keyEventInterval)
	}
	for i := len(codes) - 1; i >= 0; i-- {
		C.XTestFakeKeyEvent(b.dpy, codes[i], C.False, 0)
		time.Sleep(keyEventInterval)
	}
	C.XFlush(b.dpy)
	return nil
}

// keyEventInterval is the delay between synthesized key events, matching
// keyboard.rs's 10ms pacing between XTestFakeKeyEvent calls.
const keyEventInterval = 10 * time.Millisecond

// SendText processes \n \r \t \\ \e escape sequences in text, then
// presses each resulting character in turn, holding Shift for any
// character that requires it. Control characters produced by an escape
// sequence (Enter, Tab, Escape) are sent via their own keysym rather
// than through keysymForChar, which has no entry for them.
func (b *x11Bridge) SendText(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	shiftSym, _ := keysymFor("shift")
	shiftCode := C.XKeysymToKeycode(b.dpy, C.KeySym(shiftSym))

	for _, ch := range processEscapeSequences(text) {
		if ctrlSym, ok := keysymForControlChar(ch); ok {
			code := C.XKeysymToKeycode(b.dpy, C.KeySym(ctrlSym))
			if code == 0 {
				return fmt.Errorf("focus: no keycode for control character %q", string(ch))
			}
			C.XTestFakeKeyEvent(b.dpy, code, C.True, 0)
			time.Sleep(keyEventInterval)
			C.XTestFakeKeyEvent(b.dpy, code, C.False, 0)
			time.Sleep(keyEventInterval)
			continue
		}

		sym, shifted, err := keysymForChar(ch)
		if err != nil {
			return fmt.Errorf("focus: %w", err)
		}
		code := C.XKeysymToKeycode(b.dpy, C.KeySym(sym))
		if code == 0 {
			return fmt.Errorf("focus: no keycode for character %q", string(ch))
		}
		if shifted {
			C.XTestFakeKeyEvent(b.dpy, shiftCode, C.True, 0)
			time.Sleep(keyEventInterval)
		}
		C.XTestFakeKeyEvent(b.dpy, code, C.True, 0)
		time.Sleep(keyEventInterval)
		C.XTestFakeKeyEvent(b.dpy, code, C.False, 0)
		time.Sleep(keyEventInterval)
		if shifted {
			C.XTestFakeKeyEvent(b.dpy, shiftCode, C.False, 0)
			time.Sleep(keyEventInterval)
		}
	}
	C.XFlush(b.dpy)
	return nil
}

// processEscapeSequences expands \n \r \t \\ \e into their literal
// control characters, leaving an unrecognized escape (or a trailing
// lone backslash) as a literal backslash.
func processEscapeSequences(text string) []rune {
	runes := []rune(text)
	result := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch != '\\' || i == len(runes)-1 {
			result = append(result, ch)
			continue
		}
		switch runes[i+1] {
		case 'n':
			result = append(result, '\n')
			i++
		case 't':
			result = append(result, '\t')
			i++
		case 'r':
			result = append(result, '\r')
			i++
		case '\\':
			result = append(result, '\\')
			i++
		case 'e':
			result = append(result, '\x1b')
			i++
		default:
			result = append(result, ch) // unknown escape, keep the backslash
		}
	}
	return result
}

// keysymForControlChar maps the control characters an escape sequence
// can produce to their X11 keysym.
func keysymForControlChar(ch rune) (uint32, bool) {
	switch ch {
	case '\n', '\r':
		return 0xff0d, true // XK_Return
	case '\t':
		return 0xff09, true // XK_Tab
	case '\x1b':
		return 0xff1b, true // XK_Escape
	}
	return 0, false
}

// namedKeysyms maps the combo-string vocabulary (spec §4.I / keyboard.rs)
// to X11 keysym values.
var namedKeysyms = map[string]uint32{
	"esc": 0xff1b, "escape": 0xff1b,
	"ctrl": 0xffe3, "lctrl": 0xffe3, "control": 0xffe3, "lcontrol": 0xffe3,
	"rctrl": 0xffe4, "rcontrol": 0xffe4,
	"alt": 0xffe9, "lalt": 0xffe9,
	"ralt": 0xffea,
	"shift": 0xffe1, "lshift": 0xffe1,
	"rshift": 0xffe2,
	"super": 0xffeb, "lsuper": 0xffeb,
	"rsuper": 0xffec,
	"altgr": 0xfe03,
	"f1": 0xffbe, "f2": 0xffbf, "f3": 0xffc0, "f4": 0xffc1,
	"f5": 0xffc2, "f6": 0xffc3, "f7": 0xffc4, "f8": 0xffc5,
	"f9": 0xffc6, "f10": 0xffc7, "f11": 0xffc8, "f12": 0xffc9,
	"numlock": 0xff7f, "scrolllock": 0xff14, "capslock": 0xffe5,
	"insert": 0xff63, "delete": 0xffff,
	"home": 0xff50, "end": 0xff57,
	"pageup": 0xff55, "pagedown": 0xff56,
	"printscreen": 0xff61, "pause": 0xff13, "menu": 0xff67,
	"space": 0x0020, "tab": 0xff09, "backspace": 0xff08, "enter": 0xff0d,
	"up": 0xff52, "down": 0xff54, "left": 0xff51, "right": 0xff53,
}

func keysymFor(part string) (uint32, error) {
	key := strings.ToLower(strings.TrimSpace(part))
	if len(key) == 1 {
		sym, _, err := keysymForChar(rune(key[0]))
		return sym, err
	}
	if sym, ok := namedKeysyms[key]; ok {
		return sym, nil
	}
	return 0, fmt.Errorf("unknown key %q", part)
}

// keysymForChar maps a single character to its X11 keysym and whether
// Shift must be held to produce it, matching keyboard.rs's table.
func keysymForChar(ch rune) (sym uint32, shifted bool, err error) {
	switch {
	case ch >= 'a' && ch <= 'z':
		return uint32(ch), false, nil
	case ch >= 'A' && ch <= 'Z':
		return uint32(ch) - 'A' + 'a', true, nil
	case ch >= '0' && ch <= '9':
		return uint32(ch), false, nil
	}
	shiftedSymbols := map[rune]rune{
		'!': '1', '@': '2', '#': '3', '$': '4', '%': '5',
		'^': '6', '&': '7', '*': '8', '(': '9', ')': '0',
		'_': '-', '+': '=', '{': '[', '}': ']', ':': ';',
		'"': '\'', '<': ',', '>': '.', '?': '/', '~': '`', '|': '\\',
	}
	if base, ok := shiftedSymbols[ch]; ok {
		return uint32(base), true, nil
	}
	plainSymbols := "-=[];',./\\`"
	if strings.ContainsRune(plainSymbols, ch) {
		return uint32(ch), false, nil
	}
	if ch == ' ' {
		return 0x20, false, nil
	}
	return 0, false, fmt.Errorf("unsupported character %q", strconv.QuoteRune(ch))
}
