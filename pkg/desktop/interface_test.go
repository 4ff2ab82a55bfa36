package desktop_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop/desktoptest"
)

func TestFakesSatisfyInterfaces(t *testing.T) {
	var _ desktop.PointerSource = (*desktoptest.Pointer)(nil)
	var _ desktop.DisplayProbe = (*desktoptest.Display)(nil)
	var _ desktop.StatusIcon = (*desktoptest.StatusIcon)(nil)
	var _ desktop.OverlayProvider = (*desktoptest.Overlays)(nil)
	var _ desktop.Overlay = (*desktoptest.Overlay)(nil)
}

func TestStatusIconHandleLifecycle(t *testing.T) {
	sink := &desktoptest.StatusIcon{}

	h1, err := sink.NewHandle(image.NewRGBA(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	require.NoError(t, sink.SetImage(h1))
	assert.Equal(t, 1, sink.Live())

	h2, err := sink.NewHandle(image.NewRGBA(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	require.NoError(t, sink.SetImage(h2))
	require.NoError(t, h1.Release())

	assert.Equal(t, 1, sink.Live())
	assert.Same(t, h2, sink.Current())
	assert.Error(t, h1.Release(), "double release must be reported")
	assert.Error(t, sink.SetImage(h1), "released handles cannot be shown")
}

func TestSingleDisplay(t *testing.T) {
	d := desktoptest.SingleDisplay(1920, 1080, 40)

	m, err := d.PrimaryMonitor()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), m.Bounds)
	assert.Equal(t, image.Rect(0, 0, 1920, 1040), m.WorkArea)

	u, err := d.VirtualBounds()
	require.NoError(t, err)
	assert.Equal(t, m.Bounds, u)
}

func TestErrUnavailableWraps(t *testing.T) {
	assert.Contains(t, desktop.ErrUnavailable.Error(), "unavailable")
}
