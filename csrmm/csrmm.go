// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package csrmm

import (
	"context"
	"time"

	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/common/log"
	"github.com/gorse-io/spmm/common/simt"
	"github.com/gorse-io/spmm/dense"
	"github.com/gorse-io/spmm/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Csrmm computes C = alpha*op(A)*op(B) + beta*C, where A is a sparse matrix
// and B and C are dense. op(A) is M x K, op(B) is K x N and C is M x N. When
// beta is zero, C is not read. The call returns after the result is written.
func Csrmm[I, J sparse.Index, T floats.Scalar](
	ctx context.Context,
	h *Handle,
	transA, transB blas.Transpose,
	alpha T,
	a *sparse.CSR[I, J, T],
	b *dense.Matrix[T],
	beta T,
	c *dense.Matrix[T],
) error {
	if h == nil {
		return errors.NotValidf("nil handle")
	}
	if a == nil || b == nil || c == nil {
		return errors.NotValidf("nil matrix")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := logArguments(h, transA, transB, alpha, a, b, beta, c); err != nil {
		h.logger.Warn("failed to write call log", zap.Error(err))
	}
	if err := validate(h, transA, transB, a, b, c); err != nil {
		return errors.Trace(err)
	}

	m := lo.Ternary(transA.Transposed(), a.Cols, a.Rows)
	n := c.Cols
	zero, one := T(0), T(1)
	if m == 0 || n == 0 || (alpha == zero && beta == one) {
		return nil
	}

	start := time.Now()
	p := &params[I, J, T]{
		rows:   a.Rows,
		n:      n,
		rowPtr: a.RowPtr,
		colInd: a.ColInd,
		val:    a.Val,
		base:   int(a.Base),
		alpha:  alpha,
		beta:   beta,
		b:      b.Data,
		ldb:    b.Ld,
		c:      c.Data,
		ldc:    c.Ld,
		orderC: c.Order,
	}
	if alpha == zero {
		if err := launchScale(ctx, h, m, n, beta, c); err != nil {
			return errors.Trace(err)
		}
	} else if !transA.Transposed() {
		if err := launchMultiply(ctx, h, transA, transB, b.Order, p); err != nil {
			return errors.Trace(err)
		}
	} else {
		if beta != one {
			if err := launchScale(ctx, h, m, n, beta, c); err != nil {
				return errors.Trace(err)
			}
		}
		if err := launchMultiply(ctx, h, transA, transB, b.Order, p); err != nil {
			return errors.Trace(err)
		}
	}
	if err := h.queue.Synchronize(); err != nil {
		return errors.Trace(err)
	}
	h.logger.Debug("csrmm finished",
		zap.String("precision", floats.Precision[T]()),
		zap.String("trans_a", transA.Letter()),
		zap.String("trans_b", transB.Letter()),
		zap.Int("m", m),
		zap.Int("n", n),
		zap.Int("nnz", a.NNZ),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func validate[I, J sparse.Index, T floats.Scalar](h *Handle, transA, transB blas.Transpose,
	a *sparse.CSR[I, J, T], b, c *dense.Matrix[T]) error {
	if !transA.Valid() {
		return errors.NotValidf("transpose %d of A", int(transA))
	}
	if !transB.Valid() {
		return errors.NotValidf("transpose %d of B", int(transB))
	}
	if !a.Base.Valid() {
		return errors.NotSupportedf("index base %d", int(a.Base))
	}
	if err := a.Validate(); err != nil {
		return errors.Annotate(err, "A")
	}
	if err := b.Validate(); err != nil {
		return errors.Annotate(err, "B")
	}
	if err := c.Validate(); err != nil {
		return errors.Annotate(err, "C")
	}
	m := lo.Ternary(transA.Transposed(), a.Cols, a.Rows)
	k := lo.Ternary(transA.Transposed(), a.Rows, a.Cols)
	n := c.Cols
	if c.Rows != m {
		return errors.BadRequestf("C has %d rows but op(A) has %d", c.Rows, m)
	}
	bRows := lo.Ternary(transB.Transposed(), b.Cols, b.Rows)
	bCols := lo.Ternary(transB.Transposed(), b.Rows, b.Cols)
	if bRows != k || bCols != n {
		return errors.BadRequestf("op(B) is %dx%d but op(A)*op(B) needs %dx%d", bRows, bCols, k, n)
	}
	if h.checkStructure {
		if err := a.ValidateStructure(); err != nil {
			return errors.Annotate(err, "A")
		}
	}
	return nil
}

func launchScale[T floats.Scalar](ctx context.Context, h *Handle, m, n int, beta T, c *dense.Matrix[T]) error {
	block := simt.D2(h.waveSize, h.blockSize/h.waveSize)
	cfg := simt.LaunchConfig{
		Name:  "csrmm_scale",
		Grid:  simt.D2(simt.CeilDiv(m, block.X), simt.CeilDiv(n, block.Y)),
		Block: block,
	}
	return errors.Trace(h.queue.Launch(ctx, cfg, scaleKernel(m, n, beta, c.Data, c.Ld, c.Order)))
}

// launchMultiply fixes the element arithmetic of T and launches the kernel
// chosen by multiplyKernel.
func launchMultiply[I, J sparse.Index, T floats.Scalar](ctx context.Context, h *Handle,
	transA, transB blas.Transpose, orderB blas.Order, p *params[I, J, T]) error {
	var (
		cfg    simt.LaunchConfig
		kernel simt.Kernel
		zero   T
	)
	switch p := any(p).(type) {
	case *params[I, J, float32]:
		cfg, kernel = multiplyKernel[I, J, float32, floats.Float32Ops](h, transA, transB, orderB, p)
	case *params[I, J, float64]:
		cfg, kernel = multiplyKernel[I, J, float64, floats.Float64Ops](h, transA, transB, orderB, p)
	case *params[I, J, complex64]:
		cfg, kernel = multiplyKernel[I, J, complex64, floats.Complex64Ops](h, transA, transB, orderB, p)
	case *params[I, J, complex128]:
		cfg, kernel = multiplyKernel[I, J, complex128, floats.Complex128Ops](h, transA, transB, orderB, p)
	default:
		return errors.NotSupportedf("element type %T", zero)
	}
	return errors.Trace(h.queue.Launch(ctx, cfg, kernel))
}

// multiplyKernel picks the kernel from the orientation of A and the addressing
// of B: B is read as B[k + col*ldb] when it is column-major and not transposed,
// or row-major and transposed, and as B[col + k*ldb] otherwise.
func multiplyKernel[I, J sparse.Index, T floats.Scalar, A floats.Arith[T]](h *Handle,
	transA, transB blas.Transpose, orderB blas.Order, p *params[I, J, T]) (simt.LaunchConfig, simt.Kernel) {
	conjA := transA == blas.ConjTrans && floats.IsComplex[T]()
	conjB := transB == blas.ConjTrans && floats.IsComplex[T]()
	colMajorB := transB.Transposed() == (orderB == blas.RowMajor)
	tiles := simt.CeilDiv(p.n, h.waveSize)
	switch {
	case !transA.Transposed() && colMajorB:
		return h.multiplyConfig("csrmm_nn", p.rows, tiles), nn[I, J, T, A](conjA, conjB, p)
	case !transA.Transposed():
		return h.multiplyConfig("csrmm_nt", p.rows, 1), nt[I, J, T, A](conjA, conjB, p, 0, p.n)
	case colMajorB:
		return h.multiplyConfig("csrmm_tn", p.rows, tiles), trans[I, J, T, A, colLayout](conjA, conjB, p)
	default:
		return h.multiplyConfig("csrmm_tt", p.rows, tiles), trans[I, J, T, A, rowLayout](conjA, conjB, p)
	}
}

// multiplyConfig assigns one group per row. Blocks along X are capped by
// MaxGridX and blocks along Y select tiles of output columns.
func (h *Handle) multiplyConfig(name string, rows, gridY int) simt.LaunchConfig {
	groupsPerBlock := h.blockSize / h.waveSize
	return simt.LaunchConfig{
		Name:     name,
		Grid:     simt.D2(min(h.maxGridX, max(1, simt.CeilDiv(rows, groupsPerBlock))), gridY),
		Block:    simt.D1(h.blockSize),
		WaveSize: h.waveSize,
	}
}

func nn[I, J sparse.Index, T floats.Scalar, A floats.Arith[T]](conjA, conjB bool, p *params[I, J, T]) simt.Kernel {
	switch {
	case conjA && conjB:
		return nnKernel[I, J, T, A, conj[T, A], conj[T, A]](p)
	case conjA:
		return nnKernel[I, J, T, A, conj[T, A], noop[T]](p)
	case conjB:
		return nnKernel[I, J, T, A, noop[T], conj[T, A]](p)
	default:
		return nnKernel[I, J, T, A, noop[T], noop[T]](p)
	}
}

func nt[I, J sparse.Index, T floats.Scalar, A floats.Arith[T]](conjA, conjB bool, p *params[I, J, T], offset, ncol int) simt.Kernel {
	switch {
	case conjA && conjB:
		return ntKernel[I, J, T, A, conj[T, A], conj[T, A]](p, offset, ncol)
	case conjA:
		return ntKernel[I, J, T, A, conj[T, A], noop[T]](p, offset, ncol)
	case conjB:
		return ntKernel[I, J, T, A, noop[T], conj[T, A]](p, offset, ncol)
	default:
		return ntKernel[I, J, T, A, noop[T], noop[T]](p, offset, ncol)
	}
}

func trans[I, J sparse.Index, T floats.Scalar, A floats.Arith[T], L layout](conjA, conjB bool, p *params[I, J, T]) simt.Kernel {
	switch {
	case conjA && conjB:
		return transKernel[I, J, T, A, conj[T, A], conj[T, A], L](p)
	case conjA:
		return transKernel[I, J, T, A, conj[T, A], noop[T], L](p)
	case conjB:
		return transKernel[I, J, T, A, noop[T], conj[T, A], L](p)
	default:
		return transKernel[I, J, T, A, noop[T], noop[T], L](p)
	}
}

// logArguments writes the trace and bench lines of a call.
func logArguments[I, J sparse.Index, T floats.Scalar](h *Handle, transA, transB blas.Transpose, alpha T,
	a *sparse.CSR[I, J, T], b *dense.Matrix[T], beta T, c *dense.Matrix[T]) error {
	m := lo.Ternary(transA.Transposed(), a.Cols, a.Rows)
	k := lo.Ternary(transA.Transposed(), a.Rows, a.Cols)
	if h.trace != nil {
		if err := log.LogArguments(h.trace, ",", floats.Precision[T]()+"csrmm",
			transA.Letter(), transB.Letter(), m, c.Cols, k, a.NNZ,
			alpha, int(a.Base), b.Order, b.Ld, beta, c.Order, c.Ld); err != nil {
			return errors.Trace(err)
		}
	}
	if h.bench != nil {
		density := 0.0
		if a.Rows > 0 && a.Cols > 0 {
			density = float64(a.NNZ) / float64(a.Rows) / float64(a.Cols)
		}
		alpha128, beta128 := floats.Complex128(alpha), floats.Complex128(beta)
		if err := log.LogArguments(h.bench, " ", "spmm bench",
			"--precision", floats.Precision[T](),
			"--trans-a", transA.Letter(),
			"--trans-b", transB.Letter(),
			"--order-b", b.Order,
			"--order-c", c.Order,
			"-m", m, "-n", c.Cols, "-k", k,
			"--density", density,
			"--base", int(a.Base),
			"--alpha", real(alpha128), "--alphai", imag(alpha128),
			"--beta", real(beta128), "--betai", imag(beta128),
			"--block-size", h.blockSize,
			"--wave-size", h.waveSize); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
