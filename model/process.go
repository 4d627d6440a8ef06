package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Process evolves a joint model state across one time step given a draw of
// independent standard normals.
type Process interface {
	// Dimension is the number of state factors, which equals the number of
	// normals consumed per step.
	Dimension() int
	// InitialValues is the state at time zero.
	InitialValues() []float64
	// Evolve writes the state at t1 into out, given the state x0 at t0 and
	// one independent standard normal per factor in z.
	Evolve(t0, t1 float64, x0, z, out []float64)
}

// LGM1FProcess evolves a single LGM state exactly: the increment over
// [t0,t1] is Gaussian with variance Zeta(t1)-Zeta(t0).
type LGM1FProcess struct {
	Model *LGM1F
}

func (p *LGM1FProcess) Dimension() int           { return 1 }
func (p *LGM1FProcess) InitialValues() []float64 { return []float64{0} }

func (p *LGM1FProcess) Evolve(t0, t1 float64, x0, z, out []float64) {
	dz := p.Model.Zeta(t1) - p.Model.Zeta(t0)
	out[0] = x0[0] + math.Sqrt(math.Max(dz, 0))*z[0]
}

// CrossAssetProcess evolves the joint IR/FX state under the domestic LGM
// measure. IR states move exactly per factor; FX log-spots move by a
// discrete drift matching the domestic/foreign bank account ratio over the
// step, read off the two currencies' state dependent bonds. Correlation is
// imposed by a Cholesky transform of the independent normals.
type CrossAssetProcess struct {
	Model *CrossAssetModel

	lower mat.TriDense
	buf   []float64
}

// NewCrossAssetProcess factorizes the model correlation once up front.
func NewCrossAssetProcess(m *CrossAssetModel) (*CrossAssetProcess, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(m.Correlation()); !ok {
		return nil, fmt.Errorf("NewCrossAssetProcess: correlation matrix not positive definite")
	}
	p := &CrossAssetProcess{Model: m, buf: make([]float64, m.Dimension())}
	chol.LTo(&p.lower)
	return p, nil
}

func (p *CrossAssetProcess) Dimension() int           { return p.Model.Dimension() }
func (p *CrossAssetProcess) InitialValues() []float64 { return p.Model.InitialValues() }

func (p *CrossAssetProcess) Evolve(t0, t1 float64, x0, z, out []float64) {
	m := p.Model
	dim := m.Dimension()
	dt := t1 - t0

	// Correlate the draw: buf = L z.
	for i := 0; i < dim; i++ {
		var s float64
		for j := 0; j <= i; j++ {
			s += p.lower.At(i, j) * z[j]
		}
		p.buf[i] = s
	}

	for i := range m.IR {
		ix := m.IrStateIndex(i)
		dz := m.IR[i].Zeta(t1) - m.IR[i].Zeta(t0)
		out[ix] = x0[ix] + math.Sqrt(math.Max(dz, 0))*p.buf[ix]
	}
	for i := 1; i < len(m.IR); i++ {
		ix := m.FxStateIndex(i)
		fx := m.Fx(i)
		sigma := fx.Sigma(t0)
		// Deterministic part: growth at the domestic over foreign bank
		// account ratio, approximated by the bond prices over the step.
		pd := m.IR[0].DiscountBond(t0, t1, x0[m.IrStateIndex(0)])
		pf := m.IR[i].DiscountBond(t0, t1, x0[m.IrStateIndex(i)])
		drift := math.Log(pf/pd) - 0.5*sigma*sigma*dt
		out[ix] = x0[ix] + drift + sigma*math.Sqrt(dt)*p.buf[ix]
	}
}
