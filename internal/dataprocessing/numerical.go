package dataprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// Describe aggregations understood by SummarizeNumerical
const (
	DescribeMean = "mean"
	DescribeMin  = "min"
	DescribeMax  = "max"
	DescribeStd  = "std"
	DescribeSum  = "sum"
)

// DescribeAll lists every describe aggregation
var DescribeAll = []string{DescribeMean, DescribeMin, DescribeMax, DescribeStd, DescribeSum}

var describeFuncs = map[string]frame.AggFunc{
	DescribeMean: frame.AggMean,
	DescribeMin:  frame.AggMin,
	DescribeMax:  frame.AggMax,
	DescribeSum:  frame.AggSum,
}

// SummarizeNumerical describes numeric columns per visitor. The output has
// one row per visitor in id order and one <column>_<agg> column per pair.
// Missing cells are skipped; std is the sample deviation and is 0 when it
// is undefined.
func SummarizeNumerical(f *frame.Frame, columns []string, aggs []string) (*frame.Frame, error) {
	ids, err := f.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot summarize", err)
	}
	keyed := f.Shallow()
	if err := keyed.Set(frame.AsText(ids)); err != nil {
		return nil, err
	}

	var grouped []frame.Agg
	var order []string
	std := make(map[string]*frame.Column)
	for _, name := range columns {
		col, err := f.MustColumn(name)
		if err != nil {
			return nil, errors.NewValidationError("cannot summarize", err)
		}
		nums, err := frame.AsNumber(col)
		if err != nil {
			return nil, errors.NewValidationError("cannot summarize", err)
		}
		for _, agg := range aggs {
			out := name + "_" + agg
			order = append(order, out)
			if agg == DescribeStd {
				std[out] = nums
				continue
			}
			fn, ok := describeFuncs[agg]
			if !ok {
				return nil, errors.NewValidationError(fmt.Sprintf("unknown aggregation %q", agg), nil).
					WithContext("column", name)
			}
			grouped = append(grouped, frame.Agg{Column: name, Func: fn, As: out})
		}
	}

	described, err := frame.GroupBy(keyed, domain.ColumnVisitorID, grouped...)
	if err != nil {
		return nil, errors.NewValidationError("cannot summarize", err)
	}
	if len(std) > 0 {
		visitors, _ := described.Column(domain.ColumnVisitorID)
		rowVisitor := make([]int, f.Len())
		at := positions(visitors.Text)
		keys, _ := keyed.Column(domain.ColumnVisitorID)
		for r, id := range keys.Text {
			rowVisitor[r] = at[id]
		}
		for name, nums := range std {
			if err := described.SetNumber(name, sampleStd(nums.Num, rowVisitor, described.Len())); err != nil {
				return nil, err
			}
		}
	}
	return described.Select(append([]string{domain.ColumnVisitorID}, order...)...)
}

// sampleStd is the per-visitor sample standard deviation, 0 below two values
func sampleStd(values []float64, rowVisitor []int, visitors int) []float64 {
	groups := make([][]float64, visitors)
	for r, v := range values {
		if !math.IsNaN(v) {
			groups[rowVisitor[r]] = append(groups[rowVisitor[r]], v)
		}
	}
	out := make([]float64, visitors)
	for i, g := range groups {
		if len(g) >= 2 {
			out[i] = stat.StdDev(g, nil)
		}
	}
	return out
}
