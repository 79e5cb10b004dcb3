package cache

// ScopedKeyer wraps a Keyer with a prefix so that several datasets or
// deployments can share one Redis instance without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SceneKey generates a prefixed scene key.
func (k *ScopedKeyer) SceneKey(datasetHash string, opts SceneKeyOpts) string {
	return k.prefix + k.inner.SceneKey(datasetHash, opts)
}

// PlaneKey generates a prefixed plane key.
func (k *ScopedKeyer) PlaneKey(datasetHash string, opts PlaneKeyOpts) string {
	return k.prefix + k.inner.PlaneKey(datasetHash, opts)
}

// RenderKey generates a prefixed render key.
func (k *ScopedKeyer) RenderKey(runID string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(runID, opts)
}
