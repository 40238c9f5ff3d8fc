package agent

import "vidsmith/internal/domain"

// Interpolate evaluates a keyframe track at the given frame using linear
// interpolation between neighboring keyframes. Frames before the first
// keyframe clamp to its value and frames after the last clamp likewise.
// Keyframes are assumed sorted by time.
func Interpolate(frame float64, keyframes []domain.Keyframe) float64 {
	if len(keyframes) == 0 {
		return 0
	}
	if frame <= keyframes[0].Time {
		return keyframes[0].Value
	}
	last := keyframes[len(keyframes)-1]
	if frame >= last.Time {
		return last.Value
	}
	for i := 1; i < len(keyframes); i++ {
		a, b := keyframes[i-1], keyframes[i]
		if frame > b.Time {
			continue
		}
		span := b.Time - a.Time
		if span == 0 {
			return b.Value
		}
		t := (frame - a.Time) / span
		return a.Value + (b.Value-a.Value)*t
	}
	return last.Value
}
