package walk

// gyroFilter is engine.rs's LowPassFilter<Vector3<f32>>: each axis
// retains `high` of its previous filtered value and admits `low` of
// the new raw sample (high+low need not sum to 1, though the default
// configuration's 0.8/0.2 does).
type gyroFilter struct {
	high, low    float64
	x, y, z      float64
}

func newGyroFilter(high, low float64) gyroFilter {
	return gyroFilter{high: high, low: low}
}

func (f *gyroFilter) update(x, y, z float64) {
	f.x = f.high*f.x + f.low*x
	f.y = f.high*f.y + f.low*y
	f.z = f.high*f.z + f.low*z
}
