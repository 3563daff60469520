// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import "fmt"

// DrawPrimitive draws primCount primitives from the bound vertex stream,
// starting at startVertex.
func (d *Device) DrawPrimitive(pt PrimitiveType, startVertex, primCount uint32) error {
	count, ok, err := d.prepareDraw(pt, primCount, false)
	if err != nil || !ok {
		return err
	}
	d.frame.pass.Draw(count, 1, startVertex, 0)
	return nil
}

// DrawIndexedPrimitive draws primCount primitives using the bound index
// buffer. baseVertex is added to every index; minIndex and numVertices
// describe the referenced vertex range and are only validated.
func (d *Device) DrawIndexedPrimitive(pt PrimitiveType, baseVertex int32, minIndex, numVertices, startIndex, primCount uint32) error {
	if numVertices == 0 && primCount != 0 {
		return fmt.Errorf("%w: empty vertex range at %d", ErrInvalidCall, minIndex)
	}
	count, ok, err := d.prepareDraw(pt, primCount, true)
	if err != nil || !ok {
		return err
	}
	d.frame.pass.DrawIndexed(count, 1, startIndex, baseVertex, 0)
	return nil
}

// prepareDraw validates a draw and runs the update pass. ok is false for
// draws with nothing to draw.
func (d *Device) prepareDraw(pt PrimitiveType, primCount uint32, indexed bool) (count uint32, ok bool, err error) {
	if err := d.checkOpen(); err != nil {
		return 0, false, err
	}
	if !d.frame.inScene {
		return 0, false, ErrNotInScene
	}
	topo, count, err := topology(pt, primCount)
	if err != nil {
		return 0, false, err
	}
	if primCount == 0 {
		return 0, false, nil
	}
	if d.fvf == 0 {
		return 0, false, fmt.Errorf("%w: no vertex format set", ErrInvalidCall)
	}
	if d.stream.Get().buf == nil {
		return 0, false, ErrNoStream
	}
	if indexed && d.indices.Get().buf == nil {
		return 0, false, ErrNoStream
	}

	oitDraw := d.frame.oit && d.translucent()
	if oitDraw {
		p := d.pixel.Get()
		p.drawID = d.frame.drawID
		d.pixel.Assign(p)
		d.frame.drawID++
	}
	if err := d.update(drawCall{topology: topo, indexed: indexed, oit: oitDraw}); err != nil {
		return 0, false, err
	}
	d.stats.draws++
	if oitDraw {
		d.stats.oitDraws++
	}
	return count, true, nil
}
