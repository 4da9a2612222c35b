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

package blas

import (
	"fmt"

	"github.com/juju/errors"
	gonum "gonum.org/v1/gonum/blas"
)

// Order is the storage order of a dense matrix. Values follow CBLAS.
type Order int

const (
	RowMajor Order = 101
	ColMajor Order = 102
)

func (o Order) Valid() bool {
	return o == RowMajor || o == ColMajor
}

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row"
	case ColMajor:
		return "column"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder accepts "row"/"r" and "column"/"col"/"c".
func ParseOrder(s string) (Order, error) {
	switch s {
	case "row", "r", "R":
		return RowMajor, nil
	case "column", "col", "c", "C":
		return ColMajor, nil
	default:
		return 0, errors.NotValidf("order %q", s)
	}
}

// Transpose is the operation applied to a matrix operand. Values follow CBLAS.
type Transpose int

const (
	NoTrans   Transpose = 111
	Trans     Transpose = 112
	ConjTrans Transpose = 113
)

func (t Transpose) Valid() bool {
	return t == NoTrans || t == Trans || t == ConjTrans
}

// Transposed reports whether t is Trans or ConjTrans.
func (t Transpose) Transposed() bool {
	return t == Trans || t == ConjTrans
}

// Letter returns the single-letter form used on command lines: N, T or C.
func (t Transpose) Letter() string {
	switch t {
	case NoTrans:
		return "N"
	case Trans:
		return "T"
	case ConjTrans:
		return "C"
	default:
		return "?"
	}
}

func (t Transpose) String() string {
	switch t {
	case NoTrans:
		return "none"
	case Trans:
		return "transpose"
	case ConjTrans:
		return "conjugate_transpose"
	default:
		return fmt.Sprintf("Transpose(%d)", int(t))
	}
}

// Gonum converts t to the transpose flag of gonum's BLAS.
func (t Transpose) Gonum() gonum.Transpose {
	switch t {
	case Trans:
		return gonum.Trans
	case ConjTrans:
		return gonum.ConjTrans
	default:
		return gonum.NoTrans
	}
}

// ParseTranspose accepts N, T and C (case insensitive).
func ParseTranspose(s string) (Transpose, error) {
	switch s {
	case "N", "n":
		return NoTrans, nil
	case "T", "t":
		return Trans, nil
	case "C", "c":
		return ConjTrans, nil
	default:
		return 0, errors.NotValidf("transpose %q", s)
	}
}

// IndexBase is subtracted from every stored sparse index before use.
type IndexBase int

const (
	IndexBaseZero IndexBase = 0
	IndexBaseOne  IndexBase = 1
)

func (b IndexBase) Valid() bool {
	return b == IndexBaseZero || b == IndexBaseOne
}

func (b IndexBase) String() string {
	switch b {
	case IndexBaseZero:
		return "zero"
	case IndexBaseOne:
		return "one"
	default:
		return fmt.Sprintf("IndexBase(%d)", int(b))
	}
}
