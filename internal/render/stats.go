package render

import "log/slog"

// Stats counts what one call to Render drew.
type Stats struct {
	Commands  int
	DrawCalls int
	Quads     int
	Vertices  int
	// Flushes counts uploads of the quad staging buffer.
	Flushes int
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("commands", s.Commands),
		slog.Int("draw_calls", s.DrawCalls),
		slog.Int("quads", s.Quads),
		slog.Int("vertices", s.Vertices),
		slog.Int("flushes", s.Flushes))
}
