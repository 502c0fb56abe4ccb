// Package aspect reduces pixel dimensions to display aspect ratio strings of
// the form "num:den", the same notation ffprobe uses for display_aspect_ratio.
package aspect

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaxDenominator caps the denominator search. For real video
// resolutions it never binds, so the result is the exact reduced fraction.
const DefaultMaxDenominator int64 = 1_000_000

// ErrDegenerate is returned for non-positive dimensions.
var ErrDegenerate = errors.New("degenerate resolution")

// Ratio returns width:height reduced to lowest terms, bounded by
// DefaultMaxDenominator.
func Ratio(width, height int) (string, error) {
	return RatioLimit(width, height, DefaultMaxDenominator)
}

// RatioLimit is Ratio with an explicit denominator cap.
func RatioLimit(width, height int, maxDen int64) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: %dx%d", ErrDegenerate, width, height)
	}
	if maxDen < 1 {
		return "", fmt.Errorf("max denominator must be at least 1 (got %d)", maxDen)
	}
	num, den := LimitDenominator(int64(width), int64(height), maxDen)
	return strconv.FormatInt(num, 10) + ":" + strconv.FormatInt(den, 10), nil
}

// LimitDenominator returns the fraction closest to n/d whose denominator is
// at most maxDen. n and d must be positive and maxDen at least 1.
//
// The search walks the continued-fraction convergents of n/d until the next
// denominator would exceed maxDen, then picks between the last convergent and
// the best semiconvergent. Ties go to the convergent.
func LimitDenominator(n, d, maxDen int64) (int64, int64) {
	g := gcd(n, d)
	n, d = n/g, d/g
	if d <= maxDen {
		return n, d
	}

	p0, q0, p1, q1 := int64(0), int64(1), int64(1), int64(0)
	num, den := n, d
	for {
		a := num / den
		q2 := q0 + a*q1
		if q2 > maxDen {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+a*p1, q2
		num, den = den, num-a*den
	}

	k := (maxDen - q0) / q1
	// |p1/q1 - n/d| = den/(q1*d); the semiconvergent sits 1/(q1*(q0+k*q1))
	// away from p1/q1 on the other side.
	if 2*den*(q0+k*q1) <= d {
		return p1, q1
	}
	return p0 + k*p1, q0 + k*q1
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
