package engine

import "fiscora/internal/port"

// ConfigOrderSelector resolves "auto" to the operator-configured order.
// This is the wired default.
type ConfigOrderSelector struct {
	Order []string
}

func (s ConfigOrderSelector) Choose(port.DocumentFeatures) []string {
	return append([]string(nil), s.Order...)
}

// SizeHeuristicSelector prefers a fast chain for small scans and an accurate
// chain for large ones. Selectable via configuration.
type SizeHeuristicSelector struct {
	ThresholdBytes int
	SmallOrder     []string
	LargeOrder     []string
}

func (s SizeHeuristicSelector) Choose(f port.DocumentFeatures) []string {
	if f.SizeBytes > s.ThresholdBytes {
		return append([]string(nil), s.LargeOrder...)
	}
	return append([]string(nil), s.SmallOrder...)
}
