package render

// GroupCommandManager hands out render queues for group commands and takes
// them back, so scenes that rebuild their groups every frame do not grow
// the renderer's queue list.
type GroupCommandManager struct {
	r    *Renderer
	used map[int]bool
	free []int
}

func newGroupCommandManager(r *Renderer) *GroupCommandManager {
	return &GroupCommandManager{r: r, used: make(map[int]bool)}
}

// Acquire returns an empty queue id not handed out to anyone else.
func (m *GroupCommandManager) Acquire() int {
	var id int
	if n := len(m.free); n > 0 {
		id = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		id = m.r.CreateRenderQueue()
	}
	m.used[id] = true
	return id
}

// Release returns id for reuse. Unknown ids are ignored.
func (m *GroupCommandManager) Release(id int) {
	if !m.used[id] {
		return
	}
	delete(m.used, id)
	m.free = append(m.free, id)
}

// InUse returns the number of queues currently handed out.
func (m *GroupCommandManager) InUse() int {
	return len(m.used)
}
