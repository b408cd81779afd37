package l4clusters

import (
	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
)

// Clusterer abstracts boundary clustering so the pipeline can be driven by
// an alternative strategy in tests.
type Clusterer interface {
	// Cluster turns isoline points into a boundary relation. A nil
	// relation is returned together with one of the package sentinels.
	Cluster(points []l3contour.Point) (*Relation, error)

	// GetParams returns the current clustering parameters.
	GetParams() Params

	// SetParams updates the clustering parameters.
	SetParams(params Params)
}

// DBSCANClusterer implements Clusterer with DBSCAN and the oval closure
// heuristics.
type DBSCANClusterer struct {
	params Params
}

// NewDBSCANClusterer creates a clusterer with the given parameters.
func NewDBSCANClusterer(params Params) *DBSCANClusterer {
	return &DBSCANClusterer{params: params}
}

// NewDefaultDBSCANClusterer creates a clusterer with default parameters.
func NewDefaultDBSCANClusterer() *DBSCANClusterer {
	return NewDBSCANClusterer(DefaultParams())
}

// Cluster implements Clusterer.
func (c *DBSCANClusterer) Cluster(points []l3contour.Point) (*Relation, error) {
	return Cluster(points, c.params)
}

// GetParams returns the current clustering parameters.
func (c *DBSCANClusterer) GetParams() Params {
	return c.params
}

// SetParams updates the clustering parameters.
func (c *DBSCANClusterer) SetParams(params Params) {
	c.params = params
}

// Verify at compile time that *DBSCANClusterer implements Clusterer.
var _ Clusterer = (*DBSCANClusterer)(nil)
