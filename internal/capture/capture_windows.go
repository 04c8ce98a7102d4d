//go:build windows

package capture

import (
	"context"
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

var (
	user32                     = windows.NewLazySystemDLL("user32.dll")
	gdi32                      = windows.NewLazySystemDLL("gdi32.dll")
	procGetWindowTextW         = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW   = user32.NewProc("GetWindowTextLengthW")
	procGetClientRect          = user32.NewProc("GetClientRect")
	procClientToScreen         = user32.NewProc("ClientToScreen")
	procGetDC                  = user32.NewProc("GetDC")
	procReleaseDC              = user32.NewProc("ReleaseDC")
	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
)

const (
	srcCopy      = 0x00CC0020
	biRGB        = 0
	dibRGBColors = 0
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type point struct {
	X, Y int32
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

type windowsPlatform struct{}

// Native returns the Win32 platform: GDI BitBlt, then screen region, then
// the full primary display.
func Native() Platform { return windowsPlatform{} }

func (windowsPlatform) Close() error { return nil }

func (windowsPlatform) Strategies() []Strategy {
	return []Strategy{
		gdiStrategy{},
		regionStrategy{resolve: clientRect},
		displayStrategy{alive: func(_ context.Context, t Target) error {
			if !windows.IsWindow(windows.HWND(t.ID)) {
				return apperrors.New(apperrors.TargetLost, "window is gone")
			}
			return nil
		}},
	}
}

// List enumerates visible top-level windows with a title.
func (windowsPlatform) List(_ context.Context) ([]Target, error) {
	var targets []Target
	cb := windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if !windows.IsWindowVisible(hwnd) {
			return 1
		}
		title := windowText(hwnd)
		if title == "" {
			return 1
		}
		var pid uint32
		_, _ = windows.GetWindowThreadProcessId(hwnd, &pid)
		targets = append(targets, Target{ID: uint64(hwnd), Title: title, PID: int(pid)})
		return 1
	})
	if err := windows.EnumWindows(cb, nil); err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	return targets, nil
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

// clientRect returns the client area in screen coordinates.
func clientRect(_ context.Context, t Target) (image.Rectangle, error) {
	hwnd := windows.HWND(t.ID)
	if !windows.IsWindow(hwnd) {
		return image.Rectangle{}, apperrors.New(apperrors.TargetLost, "window is gone")
	}
	var r rect
	if ret, _, err := procGetClientRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r))); ret == 0 {
		return image.Rectangle{}, fmt.Errorf("GetClientRect: %w", err)
	}
	tl := point{r.Left, r.Top}
	br := point{r.Right, r.Bottom}
	procClientToScreen.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&tl)))
	procClientToScreen.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&br)))
	return image.Rect(int(tl.X), int(tl.Y), int(br.X), int(br.Y)), nil
}

// gdiStrategy copies the window DC. Hardware-accelerated windows often come
// back black, which the validity check catches.
type gdiStrategy struct{}

func (gdiStrategy) Name() string { return "gdi-bitblt" }

func (gdiStrategy) Resolve(ctx context.Context, t Target) (image.Rectangle, error) {
	return clientRect(ctx, t)
}

func (gdiStrategy) Grab(_ context.Context, t Target, r image.Rectangle) (*Frame, error) {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid window dimensions: %dx%d", w, h)
	}
	hwnd := uintptr(t.ID)

	hdcWindow, _, err := procGetDC.Call(hwnd)
	if hdcWindow == 0 {
		return nil, fmt.Errorf("GetDC: %w", err)
	}
	defer procReleaseDC.Call(hwnd, hdcWindow)

	hdcMem, _, err := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC: %w", err)
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, err := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(w), uintptr(h))
	if hBitmap == 0 {
		return nil, fmt.Errorf("CreateCompatibleBitmap: %w", err)
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)
	if ret, _, err := procBitBlt.Call(hdcMem, 0, 0, uintptr(w), uintptr(h), hdcWindow, 0, 0, srcCopy); ret == 0 {
		return nil, fmt.Errorf("BitBlt: %w", err)
	}

	var bi bitmapInfo
	bi.Header.Size = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.Width = int32(w)
	bi.Header.Height = -int32(h) // top-down
	bi.Header.Planes = 1
	bi.Header.BitCount = 32
	bi.Header.Compression = biRGB

	buf := make([]byte, w*h*4)
	ret, _, err := procGetDIBits.Call(hdcMem, hBitmap, 0, uintptr(h),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&bi)), dibRGBColors)
	if ret == 0 {
		return nil, fmt.Errorf("GetDIBits: %w", err)
	}
	return FromBGRA(buf, w, h), nil
}
