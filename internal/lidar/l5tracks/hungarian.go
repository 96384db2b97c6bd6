package l5tracks

import "math"

// hungarianInf marks a forbidden pairing in a cost matrix. Any cost at or
// above it, including +Inf and NaN, is never selected.
const hungarianInf = 1e18

// HungarianAssign solves the rectangular assignment problem for an n×m cost
// matrix of non-negative costs using Kuhn-Munkres with potentials. The
// result pairs as many rows as the forbidden cells allow and, among those
// pairings, has the least total cost. It returns assignments[i] = the
// column assigned to row i, or -1 if row i is unassigned or only forbidden
// columns were left for it.
func HungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	if m == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	dim := n
	if m > dim {
		dim = m
	}

	// Forbidden cells get a cost above any sum of finite costs, so fewer
	// forbidden picks always wins and the potentials stay on the scale of
	// the real costs. Padding cells are free.
	maxFinite := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if v := cost[i][j]; v < hungarianInf && v > maxFinite {
				maxFinite = v
			}
		}
	}
	forbidden := (maxFinite + 1) * float64(dim+1)

	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		if i >= n {
			continue
		}
		for j := 0; j < m; j++ {
			if cost[i][j] < hungarianInf {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = forbidden
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is virtual.
	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // previous column on the augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
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

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 {
			rowAssign[p[j]-1] = j - 1
		}
	}

	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || !(cost[i][col] < hungarianInf) {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
	return result
}
