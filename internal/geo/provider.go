// Package geo supplies optional location metadata for click events.
package geo

import (
	"context"
	"time"

	"github.com/localink/localink/internal/model"
)

// Local reports what a single device knows about itself: its timezone.
// Country and city stay empty; the analytics layer treats absence as
// normal.
type Local struct{}

func (Local) Locate(_ context.Context, _ string) *model.GeoInfo {
	zone, _ := time.Now().Zone()
	return &model.GeoInfo{Timezone: zone}
}
