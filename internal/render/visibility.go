package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CheckVisibility reports whether a size-sized box, transformed by
// transform, may overlap a viewport of the given size once projected. The
// box's center is projected to window coordinates and tested against the
// viewport grown by the box's world-space half extents, which bound every
// rotation of the box. A box that only touches the viewport edge is not
// visible. It can keep boxes that are not visible; it never drops one
// that is.
func CheckVisibility(projection, transform mgl32.Mat4, size, viewport mgl32.Vec2) bool {
	hx, hy := size[0]/2, size[1]/2

	clip := projection.Mul4(transform).Mul4x1(mgl32.Vec4{hx, hy, 0, 1})
	if clip[3] == 0 {
		return true
	}
	sx := (clip[0]/clip[3] + 1) / 2 * viewport[0]
	sy := (clip[1]/clip[3] + 1) / 2 * viewport[1]

	m := transform
	hw := max(abs(hx*m[0]+hy*m[4]), abs(hx*m[0]-hy*m[4]))
	hh := max(abs(hx*m[1]+hy*m[5]), abs(hx*m[1]-hy*m[5]))

	return sx > -hw && sx < viewport[0]+hw &&
		sy > -hh && sy < viewport[1]+hh
}

func abs(f float32) float32 {
	return float32(math.Abs(float64(f)))
}
