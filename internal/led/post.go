package led

import "math"

// Limiter is the LED output stage for frames:
// 0) global brightness as a linear scale
// 1) per-LED white cap: scales R,G,B so R+G+B <= WhiteCap*3*255
// 2) global current budget: estimates current and scales the whole frame
//    to stay under BudgetMA, softly from Knee*BudgetMA upward.
//
// Zero values disable the corresponding stage.
type Limiter struct {
	Brightness float64 // 0..1
	WhiteCap   float64 // 0..1, fraction of full white per LED
	ChanMA     float64 // mA per channel at full scale (default 20)
	BudgetMA   float64
	Knee       float64 // default 0.9
}

// Apply limits f in place.
func (l Limiter) Apply(f Frame) {
	if l.Brightness > 0 {
		scale(f, l.Brightness)
	}
	applyWhiteCap(f, l.WhiteCap)
	if l.BudgetMA <= 0 {
		return
	}
	chanMA := l.ChanMA
	if chanMA <= 0 {
		chanMA = 20
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	total := EstimateMA(f, chanMA)
	if total <= 0 {
		return
	}
	ratio := total / l.BudgetMA
	if ratio <= knee {
		return
	}
	minS := l.BudgetMA / total
	if ratio <= 1 {
		// map ratio in [knee,1] to scale in [1, budget/total]
		t := (ratio - knee) / (1 - knee)
		scale(f, 1-t*(1-minS))
		return
	}
	scale(f, minS)
}

// EstimateMA returns the estimated current of f in mA.
func EstimateMA(f Frame, chanMA float64) float64 {
	var sum float64
	for _, b := range f {
		sum += float64(b)
	}
	return sum / 255 * chanMA
}

// applyWhiteCap clamps per-LED RGB so r+g+b <= whiteCap*3*255.
func applyWhiteCap(rgb []byte, whiteCap float64) {
	if whiteCap <= 0 || whiteCap >= 1 {
		return
	}
	limit := whiteCap * 3.0 * 255.0
	for i := 0; i+2 < len(rgb); i += 3 {
		s := float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
		if s > limit && s > 0 {
			k := limit / s
			rgb[i] = byte(math.Floor(float64(rgb[i]) * k))
			rgb[i+1] = byte(math.Floor(float64(rgb[i+1]) * k))
			rgb[i+2] = byte(math.Floor(float64(rgb[i+2]) * k))
		}
	}
}

func scale(f Frame, s float64) {
	if s >= 1 {
		return
	}
	for i := range f {
		f[i] = byte(math.Floor(float64(f[i]) * s))
	}
}
