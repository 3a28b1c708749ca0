package service

import "math"

// maxWeightAssignment solves the maximum-weight bipartite matching problem for a
// dense rows x cols weight matrix using the Hungarian method with potentials.
// A weight of zero means "no edge". The result maps each row to its matched
// column, or -1 when the row is unmatched or only matched through a zero cell.
func maxWeightAssignment(weights [][]int) []int {
	rows := len(weights)
	if rows == 0 {
		return nil
	}
	cols := 0
	maxW := 0
	for _, row := range weights {
		if len(row) > cols {
			cols = len(row)
		}
		for _, w := range row {
			if w > maxW {
				maxW = w
			}
		}
	}
	result := make([]int, rows)
	for i := range result {
		result[i] = -1
	}
	if cols == 0 || maxW == 0 {
		return result
	}

	n := rows
	if cols > n {
		n = cols
	}
	cost := func(i, j int) int64 {
		if i < rows && j < len(weights[i]) {
			return int64(maxW - weights[i][j])
		}
		return int64(maxW)
	}

	// 1-indexed arrays; index 0 is the virtual root column.
	u := make([]int64, n+1)
	v := make([]int64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]int64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.MaxInt64
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := int64(math.MaxInt64)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	for j := 1; j <= n; j++ {
		i := p[j] - 1
		c := j - 1
		if i < 0 || i >= rows || c >= len(weights[i]) {
			continue
		}
		if weights[i][c] > 0 {
			result[i] = c
		}
	}
	return result
}
