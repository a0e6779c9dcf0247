package sequencer

import "math"

// Rand is the random source the engine draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// ClosestVoltageInScale snaps v (1 V/oct) to the nearest note of scale.
// The integer part of v selects the octave. With fullQuantize the root is
// folded into the search; otherwise the scale shape is found from C and
// transposed by the root afterwards. Ties keep the first candidate scanned.
func ClosestVoltageInScale(v float64, root int, scale Scale, fullQuantize bool) float64 {
	scale = scale.Clamp()
	if scale == ScaleNone {
		return v
	}
	root = clampInt(root, 0, NumNotes-1)

	base := 0
	if fullQuantize {
		base = root
	}
	octave := float64(int(v))
	closestVal, closestDist := 10.0, 10.0
	for _, class := range scales[scale] {
		candidate := octave + float64(base+class)/12
		if dist := math.Abs(v - candidate); dist < closestDist {
			closestVal = candidate
			closestDist = dist
		}
	}
	if !fullQuantize {
		closestVal += float64(root) / 12
	}
	return closestVal
}

// RandomNoteInScale picks a note of scale in one of the five lowest octaves.
// With ScaleNone it returns a uniform value in [0, 6).
func RandomNoteInScale(rng Rand, root int, scale Scale) float64 {
	scale = scale.Clamp()
	if scale == ScaleNone {
		return rng.Float64() * 6
	}
	root = clampInt(root, 0, NumNotes-1)
	classes := scales[scale]
	v := float64(int(5 * rng.Float64()))
	v += float64(root) / 12
	v += float64(classes[int(float64(len(classes))*rng.Float64())]) / 12
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
