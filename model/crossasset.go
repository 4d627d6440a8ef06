package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CrossAssetModel bundles one LGM component per currency and one FX
// component per non-domestic currency. Currency index 0 is the domestic
// (numeraire) currency.
//
// Factor ordering in the joint state vector is all IR states first, then the
// FX log-spots: currency i's IR state sits at index i, and its FX state (for
// i >= 1) at n+i-1 where n is the number of currencies.
type CrossAssetModel struct {
	Currencies []string
	IR         []*LGM1F
	FX         []*FXBS

	correlation *mat.SymDense
	ccyIndex    map[string]int
}

// NewCrossAssetModel wires the components. corr is the instantaneous factor
// correlation matrix in the model's factor ordering; nil means independent
// factors.
func NewCrossAssetModel(ir []*LGM1F, fx []*FXBS, corr *mat.SymDense) (*CrossAssetModel, error) {
	if len(ir) == 0 {
		return nil, fmt.Errorf("NewCrossAssetModel: no interest rate components")
	}
	if len(fx) != len(ir)-1 {
		return nil, fmt.Errorf("NewCrossAssetModel: %d fx components for %d currencies", len(fx), len(ir))
	}
	ccys := make([]string, len(ir))
	idx := make(map[string]int, len(ir))
	for i, m := range ir {
		if _, dup := idx[m.Currency]; dup {
			return nil, fmt.Errorf("NewCrossAssetModel: duplicate currency %s", m.Currency)
		}
		ccys[i] = m.Currency
		idx[m.Currency] = i
	}
	for i, f := range fx {
		if f.ForeignCurrency != ccys[i+1] {
			return nil, fmt.Errorf("NewCrossAssetModel: fx component %d is %s, want %s", i, f.ForeignCurrency, ccys[i+1])
		}
	}
	dim := 2*len(ir) - 1
	if corr != nil && corr.SymmetricDim() != dim {
		return nil, fmt.Errorf("NewCrossAssetModel: correlation dim %d, want %d", corr.SymmetricDim(), dim)
	}
	return &CrossAssetModel{
		Currencies:  ccys,
		IR:          ir,
		FX:          fx,
		correlation: corr,
		ccyIndex:    idx,
	}, nil
}

// Dimension is the number of simulated factors.
func (m *CrossAssetModel) Dimension() int { return 2*len(m.IR) - 1 }

// CcyIndex resolves a currency code to its model index.
func (m *CrossAssetModel) CcyIndex(ccy string) (int, error) {
	i, ok := m.ccyIndex[ccy]
	if !ok {
		return 0, fmt.Errorf("CcyIndex: currency %s not in model", ccy)
	}
	return i, nil
}

// IrStateIndex is the joint-state index of currency i's LGM state.
func (m *CrossAssetModel) IrStateIndex(i int) int { return i }

// FxStateIndex is the joint-state index of currency i's FX log-spot, i >= 1.
func (m *CrossAssetModel) FxStateIndex(i int) int {
	if i < 1 {
		panic("model: no fx state for the domestic currency")
	}
	return len(m.IR) + i - 1
}

// Domestic is the numeraire currency's LGM component.
func (m *CrossAssetModel) Domestic() *LGM1F { return m.IR[0] }

// Fx returns the FX component of currency i (i >= 1) against domestic.
func (m *CrossAssetModel) Fx(i int) *FXBS { return m.FX[i-1] }

// InitialValues is the time zero joint state: zero IR states, ln(spot) FX
// states.
func (m *CrossAssetModel) InitialValues() []float64 {
	x := make([]float64, m.Dimension())
	for i := 1; i < len(m.IR); i++ {
		x[m.FxStateIndex(i)] = m.FX[i-1].LogSpot0()
	}
	return x
}

// Correlation returns the factor correlation, or the identity when the model
// was built with independent factors.
func (m *CrossAssetModel) Correlation() *mat.SymDense {
	if m.correlation != nil {
		return m.correlation
	}
	dim := m.Dimension()
	c := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		c.SetSym(i, i, 1)
	}
	return c
}
