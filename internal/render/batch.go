package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/gpu"
)

// batchQuads moves the quads of cmd into the staging buffer, in world
// space. A batch that cannot take all of them is drawn first; a command
// larger than the whole buffer is drawn in capacity-sized pieces.
func (r *Renderer) batchQuads(cmd *QuadCommand) {
	quads := cmd.Quads()
	if len(quads) == 0 {
		return
	}
	if r.quadCount+len(quads) > r.capacity {
		r.drawBatchedQuads()
	}
	for len(quads) > 0 {
		n := min(len(quads), r.capacity-r.quadCount)
		r.fillQuads(quads[:n], cmd.ModelView())
		r.batched = append(r.batched, batchEntry{cmd: cmd, quads: n})
		quads = quads[n:]
		if len(quads) > 0 {
			r.drawBatchedQuads()
		}
	}
}

func (r *Renderer) fillQuads(quads []Quad, mv mgl32.Mat4) {
	identity := mv == mgl32.Ident4()
	dst := r.verts[r.quadCount*4:]
	for i, q := range quads {
		for j, v := range [4]Vertex{q.TL, q.BL, q.TR, q.BR} {
			if !identity {
				v.Pos = mv.Mul4x1(v.Pos.Vec4(1)).Vec3()
			}
			dst[i*4+j] = v
		}
	}
	r.quadCount += len(quads)
}

// drawBatchedQuads uploads the staging buffer and draws it with one call
// per run of equal material IDs. MaterialIDDoNotBatch always starts a new
// run.
func (r *Renderer) drawBatchedQuads() {
	if r.quadCount == 0 {
		return
	}
	defer r.timers.Track("render.DrawBatchedQuads")()

	// Mapping a dynamic buffer orphans its old storage, so a flush never
	// waits on the previous flush's draws.
	copy(r.vb.Map(), gpu.AsBytes(r.verts[:r.quadCount*4]))
	r.vb.Unmap()
	r.stats.Flushes++
	r.vd.Use()

	start, count := 0, 0
	for _, e := range r.batched {
		id := e.cmd.MaterialID()
		if id != r.lastMaterial || id == MaterialIDDoNotBatch {
			if count > 0 {
				r.drawQuadRange(start, count)
				start += count
				count = 0
			}
			e.cmd.useMaterial(&r.frame)
			r.lastMaterial = id
		}
		count += e.quads
	}
	if count > 0 {
		r.drawQuadRange(start, count)
	}

	r.vd.Disable()
	clear(r.batched)
	r.batched = r.batched[:0]
	r.quadCount = 0
}

func (r *Renderer) drawQuadRange(startQuad, quads int) {
	r.dev.DrawElements(gpu.Triangles, int32(quads*6), gpu.UnsignedShort, startQuad*6*2)
	r.stats.DrawCalls++
	r.stats.Quads += quads
	r.stats.Vertices += quads * 4
}
