// Package monitor renders run results for humans: a PNG per epoch showing
// the contour points, the boundary polygons and the filled oval interior,
// and an HTML timeline of crossing events per station and satellite.
//
// Reporter implements pipeline.ResultSink so it can be attached to a run
// next to the sqlite store. All files are written through an
// fsutil.FileSystem below a single output directory; paths that would
// escape it are rejected.
package monitor
