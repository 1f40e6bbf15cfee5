package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Suppression metrics
	RecordsBuffered    *prometheus.CounterVec
	RecordsEmitted     *prometheus.CounterVec
	TombstonesDropped  *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	BufferSize         *prometheus.GaugeVec
	BufferRecordCount  *prometheus.GaugeVec
	StreamTime         *prometheus.GaugeVec
	SuppressionDelay   *prometheus.HistogramVec

	// Producer metrics
	MessagesPublished *prometheus.CounterVec
	PublishLatency    *prometheus.HistogramVec

	// Archive metrics
	FilesWritten      *prometheus.CounterVec
	FileWriteDuration *prometheus.HistogramVec
	FileSize          *prometheus.HistogramVec
	ArchiveErrors     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Suppression metrics
		RecordsBuffered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suppress_records_buffered_total",
				Help: "Total number of records admitted into the suppression buffer",
			},
			[]string{"topic", "partition"},
		),
		RecordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suppress_records_emitted_total",
				Help: "Total number of records emitted downstream, labeled by reason",
			},
			[]string{"topic", "partition", "reason"},
		),
		TombstonesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suppress_tombstones_dropped_total",
				Help: "Total number of tombstones dropped under final-results suppression",
			},
			[]string{"topic", "partition"},
		),
		ProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "processing_duration_seconds",
				Help:    "Duration of record processing operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "operation"},
		),
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "suppress_buffer_size_bytes",
				Help: "Current suppression buffer size in bytes",
			},
			[]string{"topic", "partition"},
		),
		BufferRecordCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "suppress_buffer_record_count",
				Help: "Current number of records held in the suppression buffer",
			},
			[]string{"topic", "partition"},
		),
		StreamTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "suppress_stream_time_ms",
				Help: "Observed stream-time high-water mark in epoch milliseconds",
			},
			[]string{"topic", "partition"},
		),
		SuppressionDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "suppress_emission_delay_seconds",
				Help:    "Stream-time delay between buffering a record and emitting it",
				Buckets: []float64{0.01, 0.1, 1, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"topic", "partition"},
		),

		// Producer metrics
		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_published_total",
				Help: "Total number of messages published downstream",
			},
			[]string{"topic", "status"},
		),
		PublishLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_publish_latency_seconds",
				Help:    "Latency of downstream publish operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic"},
		),

		// Archive metrics
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_files_written_total",
				Help: "Total number of archive files written",
			},
			[]string{"topic", "partition", "format", "status"},
		),
		FileWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_file_write_duration_seconds",
				Help:    "Duration of archive file write operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "format"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_file_size_bytes",
				Help:    "Size of archive files written",
				Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 10), // 1MB to 1GB
			},
			[]string{"topic", "partition", "format"},
		),
		ArchiveErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_errors_total",
				Help: "Total number of archive errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncRecordsBuffered increments the buffered records counter.
func (m *Metrics) IncRecordsBuffered(topic string, partition int32) {
	m.RecordsBuffered.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncRecordsEmitted increments the emitted records counter for a reason.
func (m *Metrics) IncRecordsEmitted(topic string, partition int32, reason string) {
	m.RecordsEmitted.WithLabelValues(topic, fmt.Sprintf("%d", partition), reason).Inc()
}

// IncTombstonesDropped increments the dropped tombstones counter.
func (m *Metrics) IncTombstonesDropped(topic string, partition int32) {
	m.TombstonesDropped.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// SetBufferSizes sets the buffer gauges for a partition.
func (m *Metrics) SetBufferSizes(topic string, partition int32, records int64, bytes int64) {
	p := fmt.Sprintf("%d", partition)
	m.BufferRecordCount.WithLabelValues(topic, p).Set(float64(records))
	m.BufferSize.WithLabelValues(topic, p).Set(float64(bytes))
}

// SetStreamTime sets the stream-time gauge for a partition.
func (m *Metrics) SetStreamTime(topic string, partition int32, streamTimeMS int64) {
	m.StreamTime.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Set(float64(streamTimeMS))
}

// ObserveSuppressionDelay observes the stream-time delay of an emission.
func (m *Metrics) ObserveSuppressionDelay(topic string, partition int32, delaySeconds float64) {
	m.SuppressionDelay.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Observe(delaySeconds)
}

// IncMessagesPublished increments the published messages counter.
func (m *Metrics) IncMessagesPublished(topic string, status string) {
	m.MessagesPublished.WithLabelValues(topic, status).Inc()
}

// ObservePublishLatency observes downstream publish latency.
func (m *Metrics) ObservePublishLatency(topic string, duration float64) {
	m.PublishLatency.WithLabelValues(topic).Observe(duration)
}

// IncFilesWritten increments the archive files written counter.
func (m *Metrics) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.FilesWritten.WithLabelValues(topic, fmt.Sprintf("%d", partition), format, status).Inc()
}

// ObserveFileSize observes archive file size.
func (m *Metrics) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.FileSize.WithLabelValues(topic, fmt.Sprintf("%d", partition), format).Observe(size)
}

// IncArchiveErrors increments the archive errors counter.
func (m *Metrics) IncArchiveErrors(backend string, operation string) {
	m.ArchiveErrors.WithLabelValues(backend, operation).Inc()
}

// ObserveFileWriteDuration records the duration of an archive file write.
func (m *Metrics) ObserveFileWriteDuration(backend string, format string, duration float64) {
	m.FileWriteDuration.WithLabelValues(backend, format).Observe(duration)
}
