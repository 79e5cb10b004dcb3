package cache

// SceneKeyOpts identifies everything besides the dataset that determines a
// deterministic scene. Engine configuration is passed pre-hashed.
type SceneKeyOpts struct {
	Year           int     `json:"year"`
	ActiveWidth    float64 `json:"active_width"`
	ActiveHeight   float64 `json:"active_height"`
	InactiveWidth  float64 `json:"inactive_width"`
	InactiveHeight float64 `json:"inactive_height"`
	ConfigHash     string  `json:"config_hash"`
}

// PlaneKeyOpts identifies a single plane layout.
type PlaneKeyOpts struct {
	Year       int     `json:"year"`
	Plane      string  `json:"plane"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Seed       uint32  `json:"seed"`
	ConfigHash string  `json:"config_hash"`
}

// RenderKeyOpts identifies a rendered artifact of a scene.
type RenderKeyOpts struct {
	Format string  `json:"format"`
	Theme  string  `json:"theme"`
	Ticks  bool    `json:"ticks"`
	Scale  float64 `json:"scale"`
}

// Keyer builds cache keys.
type Keyer interface {
	SceneKey(datasetHash string, opts SceneKeyOpts) string
	PlaneKey(datasetHash string, opts PlaneKeyOpts) string
	RenderKey(runID string, opts RenderKeyOpts) string
}

// DefaultKeyer produces "scene:<sha256>", "plane:<sha256>" and
// "render:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SceneKey returns the key for a full two-plane scene.
func (DefaultKeyer) SceneKey(datasetHash string, opts SceneKeyOpts) string {
	return hashKey("scene", datasetHash, opts)
}

// PlaneKey returns the key for one plane.
func (DefaultKeyer) PlaneKey(datasetHash string, opts PlaneKeyOpts) string {
	return hashKey("plane", datasetHash, opts)
}

// RenderKey returns the key for one artifact of the scene with runID.
// Cached scenes keep their run ID, so their artifacts hit too.
func (DefaultKeyer) RenderKey(runID string, opts RenderKeyOpts) string {
	return hashKey("render", runID, opts)
}

var _ Keyer = DefaultKeyer{}
