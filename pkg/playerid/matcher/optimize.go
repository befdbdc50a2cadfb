package matcher

import (
	hungarian "github.com/arthurkushman/go-hungarian"
)

// RowCol is one accepted pairing from LinearSumAssignment.
type RowCol struct {
	Row int
	Col int
}

// LinearSumAssignment solves the optimal one-to-one assignment problem: given
// an NxM cost matrix, find the set of (row, col) pairs minimizing total cost
// such that no row or column appears twice, rejecting any pairing whose cost
// exceeds maxCost. go-hungarian only solves square matrices and maximizes
// profit, so non-square inputs are padded with zero-profit dummy cells and
// cost is converted to profit before solving.
func LinearSumAssignment(costMatrix [][]float64, maxCost float64) (assignments []RowCol, unmatchedRows, unmatchedCols []int) {
	numRows := len(costMatrix)
	if numRows == 0 {
		return nil, nil, nil
	}
	numCols := len(costMatrix[0])
	if numCols == 0 {
		unmatchedRows = make([]int, numRows)
		for i := range unmatchedRows {
			unmatchedRows[i] = i
		}
		return nil, unmatchedRows, nil
	}

	size := numRows
	if numCols > size {
		size = numCols
	}
	const maxProfit = 10.0
	profit := make([][]float64, size)
	for i := range profit {
		profit[i] = make([]float64, size)
		for j := range profit[i] {
			if i < numRows && j < numCols {
				profit[i][j] = maxProfit - costMatrix[i][j]
			}
		}
	}

	result := hungarian.SolveMax(profit)

	matchedRows := make(map[int]bool, numRows)
	matchedCols := make(map[int]bool, numCols)
	for rowIdx, cols := range result {
		for colIdx, p := range cols {
			if rowIdx >= numRows || colIdx >= numCols {
				continue
			}
			cost := maxProfit - p
			if cost > maxCost {
				continue
			}
			assignments = append(assignments, RowCol{Row: rowIdx, Col: colIdx})
			matchedRows[rowIdx] = true
			matchedCols[colIdx] = true
		}
	}

	for i := 0; i < numRows; i++ {
		if !matchedRows[i] {
			unmatchedRows = append(unmatchedRows, i)
		}
	}
	for j := 0; j < numCols; j++ {
		if !matchedCols[j] {
			unmatchedCols = append(unmatchedCols, j)
		}
	}
	return assignments, unmatchedRows, unmatchedCols
}
