package irt

import "math"

// Method identifies which estimator produced an Estimate.
type Method string

const (
	MethodPrior Method = "prior"
	MethodEAP   Method = "eap"
	MethodMLE   Method = "mle"
)

// Estimate is the result of ability estimation: always a finite theta in
// [-4, 4] (§7 — IRT estimation always produces a finite theta).
type Estimate struct {
	Theta      float64
	SEM        float64 // >= 0, +Inf when information is zero
	Confidence float64 // [0, 1]
	Method     Method
}

// ScoredResponse pairs a recorded response with the item parameters it was
// administered under — everything the estimator needs, and nothing it must
// fetch itself.
type ScoredResponse struct {
	Params    Parameters
	IsCorrect bool
}

const (
	minTheta = -4.0
	maxTheta = 4.0
	clampLo  = 1e-4
	clampHi  = 1 - 1e-4
)

// EstimateAbility re-estimates ability from an ordered response history
// (§4.1). The method is chosen by response count: 0-2 responses return the
// prior with infinite SEM and zero confidence; 3-4 responses use EAP
// quadrature; 5 or more use Newton-Raphson MLE.
func EstimateAbility(history []ScoredResponse, priorMean float64) Estimate {
	n := len(history)
	switch {
	case n <= 2:
		return Estimate{Theta: priorMean, SEM: math.Inf(1), Confidence: 0, Method: MethodPrior}
	case n <= 4:
		return eap(history, priorMean, 1.0)
	default:
		return mle(history, priorMean)
	}
}

// sumInformation is the total Fisher information of history evaluated at theta.
func sumInformation(history []ScoredResponse, theta float64) float64 {
	var total float64
	for _, r := range history {
		total += Information(theta, r.Params)
	}
	return total
}

// semFromInformation is 1/sqrt(total information), +Inf when total is zero.
func semFromInformation(total float64) float64 {
	if total <= 0 {
		return math.Inf(1)
	}
	return 1 / math.Sqrt(total)
}

// ─── EAP (3-4 responses) ────────────────────────────────────────────────────

const eapQuadraturePoints = 49

// eap performs discrete 49-point quadrature on [-4, 4] with a Gaussian
// prior N(priorMean, priorSD), returning the posterior-weighted mean.
func eap(history []ScoredResponse, priorMean, priorSD float64) Estimate {
	step := (maxTheta - minTheta) / float64(eapQuadraturePoints-1)

	var (
		weightedSum float64
		totalWeight float64
		nodes       [eapQuadraturePoints]float64
		posterior   [eapQuadraturePoints]float64
	)

	for i := 0; i < eapQuadraturePoints; i++ {
		theta := minTheta + float64(i)*step
		nodes[i] = theta
		prior := gaussianDensity(theta, priorMean, priorSD)
		likelihood := 1.0
		for _, r := range history {
			p := clamp(Probability(theta, r.Params), clampLo, clampHi)
			if r.IsCorrect {
				likelihood *= p
			} else {
				likelihood *= 1 - p
			}
		}
		w := prior * likelihood
		posterior[i] = w
		weightedSum += w * theta
		totalWeight += w
	}

	theta := priorMean
	if totalWeight > 0 {
		theta = weightedSum / totalWeight
	}
	theta = clamp(theta, minTheta, maxTheta)

	sem := semFromInformation(sumInformation(history, theta))
	confidence := math.Min(1, float64(len(history))/10)

	return Estimate{Theta: theta, SEM: sem, Confidence: confidence, Method: MethodEAP}
}

func gaussianDensity(x, mean, sd float64) float64 {
	z := (x - mean) / sd
	return math.Exp(-0.5*z*z) / (sd * math.Sqrt(2*math.Pi))
}

// ─── MLE (>= 5 responses) ───────────────────────────────────────────────────

const (
	mleMaxIterations   = 50
	mleTolerance       = 0.001
	mleIterationClampLo = -3.0
	mleIterationClampHi = 3.0
	mleMinSecondDeriv  = 1e-10
)

// mle performs Newton-Raphson on the log-likelihood with an adaptive step
// size min(1, 1/sqrt(iter+1)), clamped to [-3, 3] during iteration and to
// [-4, 4] on the final result. Aborts cleanly (falling back to the previous
// iterate) when the second derivative magnitude drops below 1e-10.
func mle(history []ScoredResponse, priorMean float64) Estimate {
	theta := priorMean

	for iter := 0; iter < mleMaxIterations; iter++ {
		score := firstDerivative(history, theta)
		info := sumInformation(history, theta) // -d2logL/dtheta2 approximation

		if math.Abs(info) < mleMinSecondDeriv {
			break
		}

		step := math.Min(1, 1/math.Sqrt(float64(iter+1)))
		delta := step * score / info
		next := clamp(theta+delta, mleIterationClampLo, mleIterationClampHi)

		converged := math.Abs(next-theta) < mleTolerance
		theta = next
		if converged {
			break
		}
	}

	theta = clamp(theta, minTheta, maxTheta)
	totalInfo := sumInformation(history, theta)
	sem := semFromInformation(totalInfo)
	confidence := math.Max(0, 1-sem/2)
	if math.IsInf(sem, 1) {
		confidence = 0
	}

	return Estimate{Theta: theta, SEM: sem, Confidence: confidence, Method: MethodMLE}
}

// firstDerivative is dlogL/dtheta = sum_i a_i*(P_i - c_i)*(1-P_i)/(1-c_i) *
// (u_i - P_i)/(P_i*(1-u_i... )) simplified to P'_i/P_i for a correct
// response and -P'_i/(1-P_i) for an incorrect one.
func firstDerivative(history []ScoredResponse, theta float64) float64 {
	var total float64
	for _, r := range history {
		p := clamp(Probability(theta, r.Params), clampLo, clampHi)
		pPrime := Derivative(theta, r.Params)
		if r.IsCorrect {
			total += pPrime / p
		} else {
			total += -pPrime / (1 - p)
		}
	}
	return total
}
