package analysis

// BandAverages are mean bin magnitudes over fixed fractions of the spectrum.
type BandAverages struct {
	Bass    float64
	Mid     float64
	Overall float64
}

// Extract averages the first tenth (bass), the next three tenths (mid), and
// the whole spectrum.
func Extract(s []float64) BandAverages {
	n := len(s)
	bassEnd := n / 10
	midEnd := n * 4 / 10
	return BandAverages{
		Bass:    mean(s[:bassEnd]),
		Mid:     mean(s[bassEnd:midEnd]),
		Overall: mean(s),
	}
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
