/*

This file contains the sparse polynomial accumulator used to assemble the
energy objective before submission to the solver.

Monomials are stored normalized (indices sorted ascending); accumulating the
same monomial from multiple sources sums coefficients. Constant (degree-zero)
terms are rejected because the solver submission format cannot carry one.

*/

package polynomial

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrEmptyMonomial  = errors.New("empty monomial: constant terms are not supported")
	ErrDegreeExceeded = errors.New("monomial degree exceeds configured maximum")
)

// contributions below this magnitude are discarded on accumulation
const coefficientEpsilon = 1e-12

// Term is one exported polynomial entry. Indices are left-padded with zeros
// to the builder's maximum degree, as the solver file format requires
// fixed-width, non-decreasing index rows.
type Term struct {
	Indices []int   `json:"idx"`
	Value   float64 `json:"val"`
}

// Polynomial is the flat sparse representation submitted to the solver.
type Polynomial struct {
	NumVariables int    `json:"num_variables"`
	MinDegree    int    `json:"min_degree"`
	MaxDegree    int    `json:"max_degree"`
	Terms        []Term `json:"data"`
}

// EvaluateAt computes the exported polynomial's value for a binary
// assignment. Zero entries in the padded index rows are skipped; assignment
// is 0-based, with assignment[i-1] holding the value of variable i.
func (p Polynomial) EvaluateAt(assignment []int) float64 {
	total := 0.0
	for _, t := range p.Terms {
		product := t.Value
		for _, idx := range t.Indices {
			if idx == 0 {
				continue
			}
			if idx < 1 || idx > len(assignment) {
				product = 0
				break
			}
			product *= float64(assignment[idx-1])
		}
		total += product
	}
	return total
}

// Builder accumulates monomial coefficients. Not safe for concurrent use;
// each optimization request owns exactly one Builder.
type Builder struct {
	maxDegree int
	terms     map[string]*entry
}

type entry struct {
	indices []int
	value   float64
}

// NewBuilder creates a Builder that rejects monomials above maxDegree.
func NewBuilder(maxDegree int) *Builder {
	return &Builder{
		maxDegree: maxDegree,
		terms:     make(map[string]*entry),
	}
}

// MaxDegree returns the configured degree ceiling.
func (b *Builder) MaxDegree() int {
	return b.maxDegree
}

// TermCount returns the number of distinct monomials currently stored.
func (b *Builder) TermCount() int {
	return len(b.terms)
}

// Add accumulates coefficient onto the monomial identified by indices.
// The monomial is normalized by sorting; contributions below the epsilon are
// silently discarded. An empty monomial or one above the degree ceiling is a
// formulation bug and returns an error.
func (b *Builder) Add(indices []int, coefficient float64) error {
	if len(indices) == 0 {
		return ErrEmptyMonomial
	}
	if len(indices) > b.maxDegree {
		return fmt.Errorf("%w: degree %d > %d", ErrDegreeExceeded, len(indices), b.maxDegree)
	}
	if math.Abs(coefficient) < coefficientEpsilon {
		return nil
	}

	normalized := make([]int, len(indices))
	copy(normalized, indices)
	sort.Ints(normalized)

	key := monomialKey(normalized)
	if existing, ok := b.terms[key]; ok {
		existing.value += coefficient
		return nil
	}
	b.terms[key] = &entry{indices: normalized, value: coefficient}
	return nil
}

// MaxAbsCoefficient returns the largest coefficient magnitude currently
// stored, or zero for an empty builder.
func (b *Builder) MaxAbsCoefficient() float64 {
	maxAbs := 0.0
	for _, e := range b.terms {
		if abs := math.Abs(e.value); abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs
}

// Rescale divides every coefficient by a common positive factor so the
// largest magnitude does not exceed target, and returns the divisor used
// (1.0 when no rescale was needed). Division by a positive scalar preserves
// which assignment minimizes the polynomial; this is numerical conditioning
// only. A target of zero disables rescaling.
func (b *Builder) Rescale(target float64) float64 {
	if target <= 0 {
		return 1.0
	}
	maxAbs := b.MaxAbsCoefficient()
	if maxAbs <= target {
		return 1.0
	}
	divisor := maxAbs / target
	for _, e := range b.terms {
		e.value /= divisor
	}
	return divisor
}

// EvaluateAt computes the polynomial value for a binary assignment.
// assignment is 0-based: assignment[i-1] is the value of variable i.
func (b *Builder) EvaluateAt(assignment []int) float64 {
	total := 0.0
	for _, e := range b.terms {
		product := e.value
		for _, idx := range e.indices {
			if idx < 1 || idx > len(assignment) {
				product = 0
				break
			}
			product *= float64(assignment[idx-1])
		}
		total += product
	}
	return total
}

// Export emits the flat sparse representation. Index rows are left-padded
// with zeros to the maximum degree and terms are emitted in a deterministic
// order, so exporting twice yields identical output. Terms whose accumulated
// coefficient cancelled to near zero are dropped.
func (b *Builder) Export(numVariables int) Polynomial {
	keys := make([]string, 0, len(b.terms))
	for key := range b.terms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	minDegree := 1
	first := true
	terms := make([]Term, 0, len(keys))
	for _, key := range keys {
		e := b.terms[key]
		if math.Abs(e.value) < coefficientEpsilon {
			continue
		}
		degree := len(e.indices)
		if first || degree < minDegree {
			minDegree = degree
			first = false
		}
		padded := make([]int, b.maxDegree-degree, b.maxDegree)
		padded = append(padded, e.indices...)
		terms = append(terms, Term{Indices: padded, Value: e.value})
	}

	return Polynomial{
		NumVariables: numVariables,
		MinDegree:    minDegree,
		MaxDegree:    b.maxDegree,
		Terms:        terms,
	}
}

// monomialKey encodes sorted indices into a stable map key. Indices are
// zero-padded so lexicographic key order matches numeric order per degree.
func monomialKey(sorted []int) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(sorted)))
	for _, idx := range sorted {
		sb.WriteByte(':')
		sb.WriteString(fmt.Sprintf("%08d", idx))
	}
	return sb.String()
}
