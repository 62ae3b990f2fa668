package gpu

// Lifecycle delivers the "context recreated" event to the objects that own
// GPU handles. Whatever detects the loss of the graphics context (an
// application pausing on mobile, a window system reset) calls Recreated
// once the new context is current; listeners run synchronously in
// registration order, so buffers registered before the vertex data that
// references them are recreated first.
type Lifecycle struct {
	listeners []listener
	next      uint64
}

type listener struct {
	id uint64
	fn func()
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// OnRecreate registers fn and returns a function that unregisters it.
func (l *Lifecycle) OnRecreate(fn func()) (cancel func()) {
	l.next++
	id := l.next
	l.listeners = append(l.listeners, listener{id: id, fn: fn})
	return func() {
		for i, ls := range l.listeners {
			if ls.id == id {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

// Recreated notifies every registered listener.
func (l *Lifecycle) Recreated() {
	snapshot := make([]listener, len(l.listeners))
	copy(snapshot, l.listeners)
	for _, ls := range snapshot {
		ls.fn()
	}
}

// Len returns the number of registered listeners.
func (l *Lifecycle) Len() int {
	return len(l.listeners)
}
