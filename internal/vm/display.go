package vm

// Display is the 64x32 monochrome frame buffer.
type Display struct {
	pixels [ScreenWidth * ScreenHeight]bool
}

func (d *Display) Clear() {
	d.pixels = [ScreenWidth * ScreenHeight]bool{}
}

// DrawSprite XORs rows onto the display, one byte per row with the most
// significant bit leftmost. The starting position always wraps. Pixels that
// fall past the right or bottom edge are clipped, or wrapped to the opposite
// edge when wrap is set. It reports whether any lit pixel was turned off.
func (d *Display) DrawSprite(x, y uint8, rows []byte, wrap bool) bool {
	const width = 8

	xLocation := int(x) % ScreenWidth
	yLocation := int(y) % ScreenHeight

	collided := false
	for row, bits := range rows {
		py := yLocation + row
		if py >= ScreenHeight {
			if !wrap {
				break
			}
			py %= ScreenHeight
		}

		for col := 0; col < width; col++ {
			mask := uint8(0x80) >> col
			if bits&mask == 0 {
				continue
			}

			px := xLocation + col
			if px >= ScreenWidth {
				if !wrap {
					break
				}
				px %= ScreenWidth
			}

			i := py*ScreenWidth + px
			if d.pixels[i] {
				collided = true
			}
			d.pixels[i] = !d.pixels[i]
		}
	}

	return collided
}

// Pixels returns a copy of the frame buffer in row-major order.
func (d *Display) Pixels() [ScreenWidth * ScreenHeight]bool {
	return d.pixels
}

func (d *Display) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return d.pixels[y*ScreenWidth+x]
}
