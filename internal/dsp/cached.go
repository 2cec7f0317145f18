package dsp

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PlanCache keeps one gonum FFT plan per transform length so repeated
// transforms of the same size (every chirp of a run, every block of a stream)
// do not rebuild twiddle factors. A CmplxFFT owns scratch buffers, so each plan
// is serialised by its own mutex.
type PlanCache struct {
	mu    sync.RWMutex
	plans map[int]*plan
}

type plan struct {
	mu  sync.Mutex
	fft *fourier.CmplxFFT
}

// NewPlanCache creates an empty cache. Plans are built lazily.
func NewPlanCache() *PlanCache {
	return &PlanCache{plans: make(map[int]*plan)}
}

var defaultPlans = NewPlanCache()

func (c *PlanCache) get(n int) *plan {
	c.mu.RLock()
	p, ok := c.plans[n]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok = c.plans[n]; ok {
		return p
	}
	p = &plan{fft: fourier.NewCmplxFFT(n)}
	c.plans[n] = p
	return p
}

// Transform returns the unnormalised forward DFT of seq. seq is not modified.
func (c *PlanCache) Transform(seq []complex128) []complex128 {
	if len(seq) == 0 {
		return []complex128{}
	}
	p := c.get(len(seq))
	p.mu.Lock()
	out := p.fft.Coefficients(nil, seq)
	p.mu.Unlock()
	return out
}

// Freq returns the frequency of bin i for an n-point transform in cycles per
// sample, using the conventional wrap-around ordering.
func (c *PlanCache) Freq(n, i int) float64 {
	return c.get(n).fft.Freq(i)
}

// Sizes reports the transform lengths currently cached, ascending.
func (c *PlanCache) Sizes() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, 0, len(c.plans))
	for n := range c.plans {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Reset drops every cached plan.
func (c *PlanCache) Reset() {
	c.mu.Lock()
	c.plans = make(map[int]*plan)
	c.mu.Unlock()
}
