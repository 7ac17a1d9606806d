package hazardworld

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// pseudo-lidar defaults
const (
	NumLidarBins int     = 16
	MaxLidarDist float64 = 3.0
)

// LidarFromObs builds a robot-centric pseudo-lidar reading of the
// hazards in an observation.
//
// The lidar is a set of bins dividing the circle around the robot
// evenly. A bin reads 0 when no hazard lies in its direction and
// otherwise the "closeness" of the nearest hazard: 1 where a hazard
// overlaps the robot, falling linearly to 0 at MaxLidarDist. Each
// hazard also bleeds into the two neighbouring bins in proportion to
// its angular offset within its bin, so readings vary smoothly as
// hazards cross bin boundaries.
//
// Bins are half-open: an angle exactly on a boundary is assigned to
// the higher-indexed bin.
func LidarFromObs(obs mat.Vector, numHazards int) *mat.VecDense {
	lidar := make([]float64, NumLidarBins)
	binSize := 2 * math.Pi / float64(NumLidarBins)

	for i := 0; i < numHazards; i++ {
		dx := obs.AtVec(4 + 2*i)
		dy := obs.AtVec(4 + 2*i + 1)

		dist := math.Hypot(dx, dy)
		angle := math.Mod(math.Atan2(dy, dx)+2*math.Pi, 2*math.Pi)

		bin := int(angle / binSize)
		if bin >= NumLidarBins {
			// angle == 2π after rounding wraps to the first bin
			bin = 0
		}

		sensor := math.Max(0, MaxLidarDist-dist) / MaxLidarDist
		if sensor > lidar[bin] {
			lidar[bin] = sensor
		}

		// Alias into the neighbouring bins
		alias := (angle - binSize*float64(bin)) / binSize
		binPlus := (bin + 1) % NumLidarBins
		binMinus := (bin - 1 + NumLidarBins) % NumLidarBins
		if v := alias * sensor; v > lidar[binPlus] {
			lidar[binPlus] = v
		}
		if v := (1 - alias) * sensor; v > lidar[binMinus] {
			lidar[binMinus] = v
		}
	}

	return mat.NewVecDense(NumLidarBins, lidar)
}
