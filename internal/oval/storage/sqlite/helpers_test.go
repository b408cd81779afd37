package sqlite

import (
	"time"

	"github.com/roti-lab/auroral.report/internal/config"
	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
)

func testParams() config.Params {
	p := config.DefaultParams()
	p.WindowLat, p.WindowLon = 2, 4
	p.StepLat, p.StepLon = 1, 2
	p.GridPoints = 60
	p.DBSCANEps = 1.5
	p.MinClusterSize = 30
	p.Workers = 2
	return p
}

func epochSamples(t time.Time, points []l1samples.SamplePoint) l1samples.EpochSamples {
	return l1samples.EpochSamples{Time: t, Points: points}
}
