//go:build linux && cgo

package capture

/*
#cgo CFLAGS: -I/usr/include
#cgo LDFLAGS: -lX11 -lXext

#include <X11/Xlib.h>
#include <X11/extensions/XShm.h>
#include <sys/ipc.h>
#include <sys/shm.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
    void* data;
    int width;
    int height;
    int bytesPerRow;
    int error;
} CaptureResult;

typedef struct {
    Display* display;
    Window root;
    int screen;
    int width;
    int height;
    int useShm;
    XShmSegmentInfo shmInfo;
    XImage* shmImage;
} X11Context;

static X11Context g_ctx = {0};

static int classroomlink_init_x11(int displayIndex) {
    if (g_ctx.display != NULL) {
        return 0;
    }

    g_ctx.display = XOpenDisplay(NULL);
    if (g_ctx.display == NULL) {
        return 1;
    }

    g_ctx.screen = displayIndex;
    if (g_ctx.screen >= ScreenCount(g_ctx.display)) {
        g_ctx.screen = DefaultScreen(g_ctx.display);
    }

    g_ctx.root = RootWindow(g_ctx.display, g_ctx.screen);
    g_ctx.width = DisplayWidth(g_ctx.display, g_ctx.screen);
    g_ctx.height = DisplayHeight(g_ctx.display, g_ctx.screen);

    int major, minor;
    Bool pixmaps;
    if (XShmQueryVersion(g_ctx.display, &major, &minor, &pixmaps)) {
        g_ctx.shmImage = XShmCreateImage(
            g_ctx.display,
            DefaultVisual(g_ctx.display, g_ctx.screen),
            DefaultDepth(g_ctx.display, g_ctx.screen),
            ZPixmap, NULL, &g_ctx.shmInfo, g_ctx.width, g_ctx.height);

        if (g_ctx.shmImage != NULL) {
            g_ctx.shmInfo.shmid = shmget(IPC_PRIVATE,
                g_ctx.shmImage->bytes_per_line * g_ctx.shmImage->height,
                IPC_CREAT | 0777);
            if (g_ctx.shmInfo.shmid >= 0) {
                g_ctx.shmInfo.shmaddr = g_ctx.shmImage->data = shmat(g_ctx.shmInfo.shmid, 0, 0);
                g_ctx.shmInfo.readOnly = False;
                if (XShmAttach(g_ctx.display, &g_ctx.shmInfo)) {
                    g_ctx.useShm = 1;
                    return 0;
                }
            }
            XDestroyImage(g_ctx.shmImage);
            g_ctx.shmImage = NULL;
        }
        g_ctx.useShm = 0;
    }

    return 0;
}

static void classroomlink_cleanup_x11() {
    if (g_ctx.shmImage != NULL) {
        XShmDetach(g_ctx.display, &g_ctx.shmInfo);
        shmdt(g_ctx.shmInfo.shmaddr);
        shmctl(g_ctx.shmInfo.shmid, IPC_RMID, 0);
        XDestroyImage(g_ctx.shmImage);
        g_ctx.shmImage = NULL;
    }
    if (g_ctx.display != NULL) {
        XCloseDisplay(g_ctx.display);
        g_ctx.display = NULL;
    }
    memset(&g_ctx, 0, sizeof(g_ctx));
}

static CaptureResult classroomlink_capture_screen(int displayIndex) {
    CaptureResult result = {0};

    int initErr = classroomlink_init_x11(displayIndex);
    if (initErr != 0) {
        result.error = initErr;
        return result;
    }

    XImage* image = NULL;
    if (g_ctx.useShm && g_ctx.shmImage != NULL) {
        if (!XShmGetImage(g_ctx.display, g_ctx.root, g_ctx.shmImage, 0, 0, AllPlanes)) {
            result.error = 2;
            return result;
        }
        image = g_ctx.shmImage;
    } else {
        image = XGetImage(g_ctx.display, g_ctx.root, 0, 0, g_ctx.width, g_ctx.height, AllPlanes, ZPixmap);
        if (image == NULL) {
            result.error = 3;
            return result;
        }
    }

    result.width = image->width;
    result.height = image->height;
    result.bytesPerRow = result.width * 4;

    size_t dataSize = (size_t)result.bytesPerRow * result.height;
    result.data = malloc(dataSize);
    if (result.data == NULL) {
        if (!g_ctx.useShm) XDestroyImage(image);
        result.error = 4;
        return result;
    }

    unsigned char* dst = (unsigned char*)result.data;
    int depth = image->bits_per_pixel;
    for (int y = 0; y < result.height; y++) {
        for (int x = 0; x < result.width; x++) {
            unsigned long pixel = XGetPixel(image, x, y);
            int idx = y * result.bytesPerRow + x * 4;
            if (depth == 32 || depth == 24) {
                dst[idx+0] = (pixel >> 16) & 0xFF; // R
                dst[idx+1] = (pixel >> 8) & 0xFF;  // G
                dst[idx+2] = pixel & 0xFF;         // B
                dst[idx+3] = 255;
            } else if (depth == 16) {
                dst[idx+0] = ((pixel >> 11) & 0x1F) * 255 / 31;
                dst[idx+1] = ((pixel >> 5) & 0x3F) * 255 / 63;
                dst[idx+2] = (pixel & 0x1F) * 255 / 31;
                dst[idx+3] = 255;
            }
        }
    }

    if (!g_ctx.useShm) XDestroyImage(image);
    return result;
}

static void classroomlink_bounds(int displayIndex, int* width, int* height, int* error) {
    *error = classroomlink_init_x11(displayIndex);
    if (*error == 0) {
        *width = g_ctx.width;
        *height = g_ctx.height;
    }
}

static void classroomlink_free(void* data) {
    if (data != NULL) free(data);
}
*/
import "C"

import (
	"fmt"
	"sync"
)

// x11Capturer captures the primary display over Xlib, preferring the
// XShm extension when available and falling back to plain XGetImage.
// It always grabs the full screen at DisplayIndex with no region
// capture and no cursor compositing — the input-injection plane
// applies synthetic events against the same coordinate space instead
// of rendering a cursor into the captured stream.
type x11Capturer struct {
	mu  sync.Mutex
	cfg Config
}

func newPlatformCapturer(cfg Config) (Capturer, error) {
	return &x11Capturer{cfg: cfg}, nil
}

func (c *x11Capturer) CaptureFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := C.classroomlink_capture_screen(C.int(c.cfg.DisplayIndex))
	if result.error != 0 {
		return Frame{}, translateError(int(result.error))
	}
	defer C.classroomlink_free(result.data)

	width := int(result.width)
	height := int(result.height)
	stride := int(result.bytesPerRow)
	rgba := C.GoBytes(result.data, C.int(stride*height))

	return Frame{RGBA: rgba, Width: width, Height: height, Stride: stride}, nil
}

func (c *x11Capturer) Bounds() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var w, h, errCode C.int
	C.classroomlink_bounds(C.int(c.cfg.DisplayIndex), &w, &h, &errCode)
	if errCode != 0 {
		return 0, 0, translateError(int(errCode))
	}
	return int(w), int(h), nil
}

func (c *x11Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	C.classroomlink_cleanup_x11()
	return nil
}

func translateError(code int) error {
	switch code {
	case 1:
		return fmt.Errorf("capture: failed to open X11 display (is DISPLAY set?)")
	case 2:
		return fmt.Errorf("capture: XShmGetImage failed")
	case 3:
		return fmt.Errorf("capture: XGetImage failed")
	case 4:
		return fmt.Errorf("capture: buffer allocation failed")
	default:
		return fmt.Errorf("capture: unknown X11 capture error %d", code)
	}
}

var _ Capturer = (*x11Capturer)(nil)
