// Package overlay composites overlay elements onto an off-screen canvas and
// tracks which pixels changed since the last frame, so a backend only has
// to push the damaged region to the display server.
package overlay

import (
	"image"
	"image/draw"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Compositor keeps the element set of one overlay surface. It is not safe
// for concurrent use.
type Compositor struct {
	canvas   *image.RGBA
	elements []desktop.Element
	drawn    map[desktop.Element]image.Rectangle
	damage   image.Rectangle
}

// New creates a transparent canvas of the given size
func New(size image.Point) *Compositor {
	return &Compositor{
		canvas: image.NewRGBA(image.Rectangle{Max: size}),
		drawn:  make(map[desktop.Element]image.Rectangle),
	}
}

// Add appends e; later elements draw on top. Adding twice is a no-op.
func (c *Compositor) Add(e desktop.Element) {
	if _, ok := c.drawn[e]; ok {
		return
	}
	c.elements = append(c.elements, e)
	c.drawn[e] = image.Rectangle{}
}

// Remove drops e and marks the area it last covered as damaged
func (c *Compositor) Remove(e desktop.Element) {
	r, ok := c.drawn[e]
	if !ok {
		return
	}
	delete(c.drawn, e)
	c.damage = c.damage.Union(r)
	for i, el := range c.elements {
		if el == e {
			c.elements = append(c.elements[:i], c.elements[i+1:]...)
			break
		}
	}
}

// Len returns the number of elements
func (c *Compositor) Len() int {
	return len(c.elements)
}

// Compose redraws everything that moved or changed and returns the damaged
// rectangle in canvas coordinates (empty if nothing needs pushing).
// Elements are assumed to change every frame, so each element's previous
// and current bounds are both damaged.
func (c *Compositor) Compose() image.Rectangle {
	dmg := c.damage
	for _, e := range c.elements {
		cur := e.Bounds().Intersect(c.canvas.Rect)
		dmg = dmg.Union(c.drawn[e]).Union(cur)
		c.drawn[e] = cur
	}
	dmg = dmg.Intersect(c.canvas.Rect)
	c.damage = image.Rectangle{}
	if dmg.Empty() {
		return image.Rectangle{}
	}

	sub := c.canvas.SubImage(dmg).(*image.RGBA)
	draw.Draw(sub, dmg, image.Transparent, image.Point{}, draw.Src)
	for _, e := range c.elements {
		if c.drawn[e].Overlaps(dmg) {
			e.Draw(sub)
		}
	}
	return dmg
}

// Image returns the composed canvas
func (c *Compositor) Image() *image.RGBA {
	return c.canvas
}
