package l5tracks

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/lidarsynth/internal/lidar/l4perception"
)

func TestHungarianAssign_Empty(t *testing.T) {
	result := HungarianAssign(nil)
	if result != nil {
		t.Errorf("expected nil for empty cost matrix, got %v", result)
	}
}

func TestHungarianAssign_NoColumns(t *testing.T) {
	result := HungarianAssign([][]float64{{}, {}})
	if len(result) != 2 || result[0] != -1 || result[1] != -1 {
		t.Errorf("expected [-1 -1], got %v", result)
	}
}

func TestHungarianAssign_SquareOptimal(t *testing.T) {
	//   [1 2 3]     Optimal: row0→col0 (1), row1→col1 (4), row2→col2 (5) = 10
	//   [4 4 6]
	//   [9 8 5]
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := HungarianAssign(cost)
	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}

	total := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		total += cost[i][j]
	}
	if total != 10 {
		t.Errorf("expected optimal cost 10, got %v (assignments: %v)", total, result)
	}
}

func TestHungarianAssign_Forbidden(t *testing.T) {
	cost := [][]float64{
		{1, 2},
		{math.Inf(1), hungarianInf},
	}
	result := HungarianAssign(cost)
	if result[0] < 0 {
		t.Errorf("row 0 should be assigned, got %d", result[0])
	}
	if result[1] != -1 {
		t.Errorf("row 1 should be unassigned (-1), got %d", result[1])
	}
}

func TestHungarianAssign_MoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	result := HungarianAssign(cost)
	if result[0] != 0 || result[1] != 1 || result[2] != -1 {
		t.Errorf("expected [0 1 -1], got %v", result)
	}
}

func TestHungarianAssign_MoreColsThanRows(t *testing.T) {
	cost := [][]float64{
		{7, 3, 9},
	}
	result := HungarianAssign(cost)
	if len(result) != 1 || result[0] != 1 {
		t.Errorf("expected [1], got %v", result)
	}
}

// assignmentScore counts the allowed pairs in assign and sums their cost.
func assignmentScore(cost [][]float64, assign []int) (int, float64) {
	pairs, total := 0, 0.0
	for i, j := range assign {
		if j < 0 {
			continue
		}
		pairs++
		total += cost[i][j]
	}
	return pairs, total
}

// bestAssignment enumerates every partial matching and returns the score of
// the one with the most allowed pairs and then the lowest cost.
func bestAssignment(cost [][]float64) (int, float64) {
	m := len(cost[0])
	used := make([]bool, m)
	bestPairs, bestCost := -1, 0.0
	var walk func(row, pairs int, total float64)
	walk = func(row, pairs int, total float64) {
		if row == len(cost) {
			if pairs > bestPairs || (pairs == bestPairs && total < bestCost) {
				bestPairs, bestCost = pairs, total
			}
			return
		}
		walk(row+1, pairs, total)
		for j := 0; j < m; j++ {
			if used[j] || !(cost[row][j] < hungarianInf) {
				continue
			}
			used[j] = true
			walk(row+1, pairs+1, total+cost[row][j])
			used[j] = false
		}
	}
	walk(0, 0, 0)
	return bestPairs, bestCost
}

func TestHungarianAssign_MixedForbiddenRectangular(t *testing.T) {
	F := hungarianInf
	cost := [][]float64{
		{8.07, 26.52},
		{F, 68.53},
		{14.17, F},
		{9.96, 56.32},
	}
	result := HungarianAssign(cost)
	pairs, total := assignmentScore(cost, result)
	if pairs != 2 || math.Abs(total-36.48) > 1e-9 {
		t.Errorf("expected 2 pairs costing 36.48, got %d costing %v (assignments: %v)", pairs, total, result)
	}
}

func TestHungarianAssign_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 3000; trial++ {
		n, m := 1+rng.Intn(5), 1+rng.Intn(5)
		cost := make([][]float64, n)
		for i := range cost {
			cost[i] = make([]float64, m)
			for j := range cost[i] {
				if rng.Intn(3) == 0 {
					cost[i][j] = hungarianInf
				} else {
					cost[i][j] = math.Round(rng.Float64()*7000) / 100
				}
			}
		}

		result := HungarianAssign(cost)
		seen := make(map[int]bool)
		for i, j := range result {
			if j < 0 {
				continue
			}
			if seen[j] {
				t.Fatalf("trial %d: column %d assigned twice in %v", trial, j, result)
			}
			seen[j] = true
			if !(cost[i][j] < hungarianInf) {
				t.Fatalf("trial %d: forbidden cell (%d,%d) assigned", trial, i, j)
			}
		}

		gotPairs, gotCost := assignmentScore(cost, result)
		wantPairs, wantCost := bestAssignment(cost)
		if gotPairs != wantPairs || math.Abs(gotCost-wantCost) > 1e-6 {
			t.Fatalf("trial %d: got %d pairs costing %v, best is %d costing %v\ncost=%v\nassign=%v",
				trial, gotPairs, gotCost, wantPairs, wantCost, cost, result)
		}
	}
}

func TestOptimalAssign_PicksClosestInGate(t *testing.T) {
	objects := []*TrackedObject{
		newTrackedObject("obj_a", 1, l4perception.Point{X: 100, Y: 0}, DefaultNoteParams(), epoch),
	}
	centroids := []l4perception.Point{
		{X: 300, Y: 0},     // out of gate
		{X: 0, Y: 0},       // out of gate
		{X: 135.16, Y: 0},  // 35.16
		{X: 100, Y: 10.39}, // 10.39
		{X: 44.67, Y: 0},   // 55.33
	}
	got := optimalAssign(objects, centroids, 70)
	want := []int{-1, -1, -1, 0, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
