package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

func setSession(t *testing.T, sessionType, waylandDisplay, x11Display string) {
	t.Helper()
	t.Setenv("XDG_SESSION_TYPE", sessionType)
	t.Setenv("WAYLAND_DISPLAY", waylandDisplay)
	t.Setenv("DISPLAY", x11Display)
}

func TestDetectDisplayServer(t *testing.T) {
	tests := []struct {
		name           string
		sessionType    string
		waylandDisplay string
		x11Display     string
		expected       string
	}{
		{"Wayland session", "wayland", "wayland-0", "", "wayland"},
		{"X11 session", "x11", "", ":0", "x11"},
		{"Unknown session", "", "", "", "unknown"},
		{"Wayland display set", "", "wayland-1", "", "wayland"},
		{"X11 display set", "", "", ":1", "x11"},
		{"XWayland", "wayland", "wayland-0", ":0", "wayland"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setSession(t, tt.sessionType, tt.waylandDisplay, tt.x11Display)
			assert.Equal(t, tt.expected, DetectDisplayServer())
		})
	}
}

func TestNewWithoutDisplay(t *testing.T) {
	setSession(t, "", "", "")

	b, err := New(Options{})
	assert.Nil(t, b)
	assert.ErrorIs(t, err, desktop.ErrUnavailable)
}

func TestNewWaylandWithoutXWayland(t *testing.T) {
	setSession(t, "wayland", "wayland-0", "")

	_, err := New(Options{})
	assert.ErrorIs(t, err, desktop.ErrUnavailable)
}
