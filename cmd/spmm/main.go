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

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gorse-io/spmm/cmd/version"
	"github.com/gorse-io/spmm/common/blas"
	"github.com/gorse-io/spmm/common/floats"
	"github.com/gorse-io/spmm/common/log"
	"github.com/gorse-io/spmm/config"
	"github.com/gorse-io/spmm/csrmm"
	"github.com/gorse-io/spmm/dense"
	"github.com/gorse-io/spmm/reference"
	"github.com/gorse-io/spmm/sparse"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "spmm",
	Short: "Sparse-dense matrix multiplication on an emulated SIMT device",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark csrmm on random operands",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if cmd.Flags().Changed("block-size") {
			cfg.Device.BlockSize, _ = cmd.Flags().GetInt("block-size")
		}
		if cmd.Flags().Changed("wave-size") {
			cfg.Device.WaveSize, _ = cmd.Flags().GetInt("wave-size")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Device.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if err = cfg.Validate(); err != nil {
			log.Logger().Fatal("invalid device configuration", zap.Error(err))
		}
		opts, err := parseBenchOptions(cmd)
		if err != nil {
			log.Logger().Fatal("invalid arguments", zap.Error(err))
		}
		h, err := csrmm.NewHandle(cfg.NewHandleOptions()...)
		if err != nil {
			log.Logger().Fatal("failed to create handle", zap.Error(err))
		}
		defer func() {
			if err := h.Close(); err != nil {
				log.Logger().Error("failed to close handle", zap.Error(err))
			}
		}()

		var result *benchResult
		switch opts.precision {
		case "s":
			result, err = runBench[float32](cmd.Context(), h, opts)
		case "d":
			result, err = runBench[float64](cmd.Context(), h, opts)
		case "c":
			result, err = runBench[complex64](cmd.Context(), h, opts)
		case "z":
			result, err = runBench[complex128](cmd.Context(), h, opts)
		default:
			err = errors.NotValidf("precision %q", opts.precision)
		}
		if err != nil {
			log.Logger().Fatal("failed to run benchmark", zap.Error(err))
		}
		printResult(opts, result)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(benchCmd)

	flags := benchCmd.Flags()
	flags.StringP("config", "c", "", "configuration file path")
	flags.StringP("precision", "r", "d", "precision: s, d, c or z")
	flags.String("trans-a", "N", "operation of A: N, T or C")
	flags.String("trans-b", "N", "operation of B: N, T or C")
	flags.String("order-b", "column", "storage order of B: row or column")
	flags.String("order-c", "column", "storage order of C: row or column")
	flags.IntP("rows", "m", 1024, "rows of op(A) and C")
	flags.IntP("cols", "n", 64, "columns of op(B) and C")
	flags.IntP("inner", "k", 1024, "columns of op(A) and rows of op(B)")
	flags.Float64("density", 0.01, "fraction of nonzeros in A")
	flags.Int("base", 0, "index base of A: 0 or 1")
	flags.Float64("alpha", 1, "real part of alpha")
	flags.Float64("alphai", 0, "imaginary part of alpha")
	flags.Float64("beta", 0, "real part of beta")
	flags.Float64("betai", 0, "imaginary part of beta")
	flags.Int("block-size", csrmm.DefaultBlockSize, "lanes per block")
	flags.Int("wave-size", csrmm.DefaultWaveSize, "lanes per group")
	flags.Int("workers", 0, "blocks run at the same time (0 for all cores)")
	flags.IntP("iters", "i", 10, "number of timed calls")
	flags.Int64("seed", 0, "random seed")
	flags.BoolP("verify", "v", false, "check the result against dense BLAS")
}

type benchOptions struct {
	precision      string
	transA, transB blas.Transpose
	orderB, orderC blas.Order
	m, n, k        int
	density        float64
	base           blas.IndexBase
	alpha, beta    complex128
	iters          int
	seed           int64
	verify         bool
}

func parseBenchOptions(cmd *cobra.Command) (*benchOptions, error) {
	flags := cmd.Flags()
	var (
		opts benchOptions
		err  error
		s    string
	)
	opts.precision, _ = flags.GetString("precision")
	s, _ = flags.GetString("trans-a")
	if opts.transA, err = blas.ParseTranspose(s); err != nil {
		return nil, errors.Trace(err)
	}
	s, _ = flags.GetString("trans-b")
	if opts.transB, err = blas.ParseTranspose(s); err != nil {
		return nil, errors.Trace(err)
	}
	s, _ = flags.GetString("order-b")
	if opts.orderB, err = blas.ParseOrder(s); err != nil {
		return nil, errors.Trace(err)
	}
	s, _ = flags.GetString("order-c")
	if opts.orderC, err = blas.ParseOrder(s); err != nil {
		return nil, errors.Trace(err)
	}
	opts.m, _ = flags.GetInt("rows")
	opts.n, _ = flags.GetInt("cols")
	opts.k, _ = flags.GetInt("inner")
	if opts.m < 0 || opts.n < 0 || opts.k < 0 {
		return nil, errors.NotValidf("shape %dx%dx%d", opts.m, opts.n, opts.k)
	}
	opts.density, _ = flags.GetFloat64("density")
	if opts.density < 0 || opts.density > 1 {
		return nil, errors.NotValidf("density %v", opts.density)
	}
	base, _ := flags.GetInt("base")
	opts.base = blas.IndexBase(base)
	if !opts.base.Valid() {
		return nil, errors.NotValidf("index base %d", base)
	}
	alpha, _ := flags.GetFloat64("alpha")
	alphai, _ := flags.GetFloat64("alphai")
	beta, _ := flags.GetFloat64("beta")
	betai, _ := flags.GetFloat64("betai")
	opts.alpha, opts.beta = complex(alpha, alphai), complex(beta, betai)
	opts.iters, _ = flags.GetInt("iters")
	if opts.iters <= 0 {
		return nil, errors.NotValidf("iterations %d", opts.iters)
	}
	opts.seed, _ = flags.GetInt64("seed")
	opts.verify, _ = flags.GetBool("verify")
	return &opts, nil
}

type benchResult struct {
	nnz     int
	elapsed time.Duration
	gflops  float64
	// largest relative error, negative when not verified
	maxError float64
}

func runBench[T floats.Scalar](ctx context.Context, h *csrmm.Handle, opts *benchOptions) (*benchResult, error) {
	rng := rand.New(rand.NewSource(opts.seed))
	aRows, aCols := lo.Ternary(opts.transA.Transposed(), opts.k, opts.m), lo.Ternary(opts.transA.Transposed(), opts.m, opts.k)
	bRows, bCols := lo.Ternary(opts.transB.Transposed(), opts.n, opts.k), lo.Ternary(opts.transB.Transposed(), opts.k, opts.n)
	a := sparse.Random[int32, int32, T](aRows, aCols, opts.density, rng).WithBase(opts.base)
	b := dense.Random[T](bRows, bCols, opts.orderB, rng)
	c := dense.Random[T](opts.m, opts.n, opts.orderC, rng)
	alpha, beta := floats.FromComplex128[T](opts.alpha), floats.FromComplex128[T](opts.beta)

	result := &benchResult{nnz: a.NNZ, maxError: -1}
	if opts.verify {
		expected := reference.Csrmm(opts.transA, opts.transB, alpha, a, b, beta, c)
		actual := c.Clone()
		if err := csrmm.Csrmm(ctx, h, opts.transA, opts.transB, alpha, a, b, beta, actual); err != nil {
			return nil, errors.Trace(err)
		}
		result.maxError = floats.MaxRelDiff(expected.Data, actual.Data)
	}

	bar := progressbar.Default(int64(opts.iters), "csrmm")
	start := time.Now()
	for i := 0; i < opts.iters; i++ {
		if err := csrmm.Csrmm(ctx, h, opts.transA, opts.transB, alpha, a, b, beta, c); err != nil {
			return nil, errors.Trace(err)
		}
		_ = bar.Add(1)
	}
	result.elapsed = time.Since(start) / time.Duration(opts.iters)
	result.gflops = gflops[T](a.NNZ, opts.m, opts.n, opts.beta != 0) / result.elapsed.Seconds()
	return result, nil
}

// gflops counts the floating point operations of one call in billions. A
// complex multiply-add is four real ones.
func gflops[T floats.Scalar](nnz, m, n int, withBeta bool) float64 {
	flops := 2 * float64(nnz) * float64(n)
	if withBeta {
		flops += 2 * float64(m) * float64(n)
	}
	if floats.IsComplex[T]() {
		flops *= 4
	}
	return flops / 1e9
}

func printResult(opts *benchOptions, result *benchResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("function", "trans_a", "trans_b", "M", "N", "K", "nnz", "time", "GFLOP/s", "max error")
	maxError := "-"
	if result.maxError >= 0 {
		maxError = fmt.Sprintf("%.3g", result.maxError)
	}
	row := []string{
		opts.precision + "csrmm",
		opts.transA.Letter(),
		opts.transB.Letter(),
		fmt.Sprint(opts.m),
		fmt.Sprint(opts.n),
		fmt.Sprint(opts.k),
		fmt.Sprint(result.nnz),
		result.elapsed.String(),
		fmt.Sprintf("%.3f", result.gflops),
		maxError,
	}
	if err := table.Append(lo.ToAnySlice(row)...); err != nil {
		log.Logger().Fatal("failed to append row", zap.Error(err))
	}
	if err := table.Render(); err != nil {
		log.Logger().Fatal("failed to render table", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
