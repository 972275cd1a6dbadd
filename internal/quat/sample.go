package quat

// Sample is one filtered orientation measurement, the only value the core
// hands to external consumers. The raw (pre-filter) quaternion is kept
// alongside the filtered one so consumers can compare the two.
type Sample struct {
	Quaternion Quaternion `json:"quaternion"`
	Raw        Quaternion `json:"quaternion_raw"`
	Timestamp  float64    `json:"timestamp"`
	EulerRad   Euler      `json:"euler_rad"`
	EulerDeg   Euler      `json:"euler_deg"`
}

// NewSample derives a Sample from a filtered quaternion, the raw quaternion
// it was produced from and the arrival timestamp in unix seconds.
func NewSample(filtered, raw Quaternion, timestamp float64) Sample {
	rad := filtered.ToEuler()
	return Sample{
		Quaternion: filtered,
		Raw:        raw,
		Timestamp:  timestamp,
		EulerRad:   rad,
		EulerDeg:   rad.Degrees(),
	}
}
