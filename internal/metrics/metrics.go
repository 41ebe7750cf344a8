// Package metrics holds the prometheus collectors exposed on /api/metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gallery"

var (
	OTPIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_issued_total",
		Help:      "One-time codes issued and delivered, by purpose",
	}, []string{"purpose"})

	OTPDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_delivery_failures_total",
		Help:      "One-time codes that could not be delivered",
	})

	MediaUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_upload_bytes_total",
		Help:      "Bytes written to the object store by uploads",
	})

	ArchiveEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_entries_total",
		Help:      "Items considered for ZIP downloads, by result (added or skipped)",
	}, []string{"result"})

	OrphansRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_orphans_removed_total",
		Help:      "Store objects deleted because no media row referenced them",
	})
)
