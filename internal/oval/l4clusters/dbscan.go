package l4clusters

import (
	"math"

	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
)

// Constants for clustering configuration
const (
	// DefaultDBSCANEps is the default neighbourhood radius in degrees.
	DefaultDBSCANEps = 0.7
	// DefaultDBSCANMinSamples is the default core-point threshold. A point
	// counts itself as one of its neighbours.
	DefaultDBSCANMinSamples = 3
	// EstimatedPointsPerCell is used for initial spatial index capacity estimation
	EstimatedPointsPerCell = 4
)

// SpatialIndex provides efficient nearest neighbour queries using a regular
// lon/lat grid. Cell size should approximately match the DBSCAN eps
// parameter.
type SpatialIndex struct {
	CellSize float64
	Grid     map[int64][]int // Cell ID → point indices
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[int64][]int),
	}
}

// Build populates the spatial index from a set of boundary points.
func (si *SpatialIndex) Build(points []l3contour.Point) {
	si.Grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)

	for i, p := range points {
		cellID := si.cellID(si.cellCoord(p.Lon), si.cellCoord(p.Lat))
		si.Grid[cellID] = append(si.Grid[cellID], i)
	}
}

func (si *SpatialIndex) cellCoord(v float64) int64 {
	return int64(math.Floor(v / si.CellSize))
}

// cellID computes a unique cell identifier using Szudzik's pairing function.
// Handles negative coordinates correctly.
func (si *SpatialIndex) cellID(cellX, cellY int64) int64 {
	// Map signed integers to non-negative using zigzag encoding
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}

	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// RegionQuery returns indices of all points within eps of points[idx],
// including idx itself.
func (si *SpatialIndex) RegionQuery(points []l3contour.Point, idx int, eps float64) []int {
	p := points[idx]
	neighbors := []int{}
	eps2 := eps * eps // Use squared distance to avoid sqrt

	cellX := si.cellCoord(p.Lon)
	cellY := si.cellCoord(p.Lat)

	// Search 3x3 neighborhood of cells
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidateIdx := range si.Grid[si.cellID(cellX+dx, cellY+dy)] {
				candidate := points[candidateIdx]
				ddx := candidate.Lon - p.Lon
				ddy := candidate.Lat - p.Lat
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}

	return neighbors
}

// DBSCANParams contains parameters for the DBSCAN clustering algorithm.
type DBSCANParams struct {
	Eps        float64 // Neighbourhood radius in degrees
	MinSamples int     // Minimum neighbourhood size (self included) for a core point
}

// DefaultDBSCANParams returns default DBSCAN parameters for boundary points.
func DefaultDBSCANParams() DBSCANParams {
	return DBSCANParams{
		Eps:        DefaultDBSCANEps,
		MinSamples: DefaultDBSCANMinSamples,
	}
}

// DBSCAN performs density-based clustering on boundary points using
// Euclidean (lon, lat) distance. Noise points are dropped. Clusters are
// numbered from 1 in discovery order and keep their points in input order.
func DBSCAN(points []l3contour.Point, params DBSCANParams) []BoundaryCluster {
	if len(points) == 0 || params.Eps <= 0 {
		return nil
	}

	n := len(points)
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	// Build spatial index (required for performance)
	spatialIndex := NewSpatialIndex(params.Eps)
	spatialIndex.Build(points)

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue // Already processed
		}

		neighbors := spatialIndex.RegionQuery(points, i, params.Eps)

		if len(neighbors) < params.MinSamples {
			labels[i] = -1 // Mark as noise
			continue
		}

		clusterID++
		expandCluster(points, spatialIndex, labels, i, neighbors, clusterID, params.Eps, params.MinSamples)
	}

	return buildClusters(points, labels, clusterID)
}

// expandCluster expands a cluster from a core point.
func expandCluster(points []l3contour.Point, si *SpatialIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, eps float64, minSamples int) {

	labels[seedIdx] = clusterID

	// Use a queue-based approach for expansion
	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == -1 {
			labels[idx] = clusterID // Noise becomes border point
		}

		if labels[idx] != 0 {
			continue // Already processed
		}

		labels[idx] = clusterID
		newNeighbors := si.RegionQuery(points, idx, eps)

		if len(newNeighbors) >= minSamples {
			// Core point - add its neighbors to the queue
			neighbors = append(neighbors, newNeighbors...)
		}
	}
}

// buildClusters groups labelled points into clusters.
func buildClusters(points []l3contour.Point, labels []int, maxClusterID int) []BoundaryCluster {
	buckets := make([][]l3contour.Point, maxClusterID+1)
	for i, label := range labels {
		if label > 0 {
			buckets[label] = append(buckets[label], points[i])
		}
	}

	clusters := make([]BoundaryCluster, 0, maxClusterID)
	for cid := 1; cid <= maxClusterID; cid++ {
		if len(buckets[cid]) == 0 {
			continue
		}
		clusters = append(clusters, BoundaryCluster{ID: cid, Points: buckets[cid]})
	}
	return clusters
}
