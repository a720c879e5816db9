// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bundleBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asentry_bundle_size_bytes",
		Help: "Size of the last firmware archive built",
	})

	releaseUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_release_uploads_total",
		Help: "Release asset uploads by result",
	}, []string{"result"}) // result=ok|replaced|duplicate|error
)

// SetBundleSize records the size of a built archive.
func SetBundleSize(n int64) {
	bundleBytes.Set(float64(n))
}

// RecordReleaseUpload counts an upload attempt.
func RecordReleaseUpload(result string) {
	releaseUploadsTotal.WithLabelValues(result).Inc()
}
