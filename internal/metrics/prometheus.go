package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recording notebook
type Metrics struct {
	// Capture metrics
	FramesCaptured  prometheus.Counter
	FramesDiscarded prometheus.Counter
	FramesConsumed  prometheus.Counter
	QueueDepth      prometheus.Gauge

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsStopped prometheus.Counter
	SessionDuration prometheus.Histogram

	// Segmentation metrics
	UtterancesEmitted prometheus.Counter
	UtteranceDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionEmpty     prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	LinesWritten           prometheus.Counter

	// Batch job metrics
	BatchJobsCompleted prometheus.Counter
	BatchJobsCanceled  prometheus.Counter
	BatchJobsFailed    prometheus.Counter

	// Post-processing metrics
	PostProcessSuccesses prometheus.Counter
	PostProcessFailures  prometheus.Counter
	PostProcessRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_frames_captured_total",
			Help: "Total number of audio frames accepted from the capture device",
		}),
		FramesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_frames_discarded_total",
			Help: "Total number of device callbacks discarded after stop",
		}),
		FramesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_frames_consumed_total",
			Help: "Total number of frames written and classified by the consumer",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_frame_queue_depth",
			Help: "Current number of frames waiting in the capture queue",
		}),

		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_sessions_stopped_total",
			Help: "Total number of recording sessions stopped",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~3 hours
		}),

		// Segmentation metrics
		UtterancesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_utterances_emitted_total",
			Help: "Total number of utterances closed by the segmenter",
		}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_utterance_duration_seconds",
			Help:    "Duration of emitted utterances in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to ~1 minute
		}),

		// Transcription metrics
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcription_successes_total",
			Help: "Total number of utterances transcribed with non-empty text",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcription_failures_total",
			Help: "Total number of transcription engine failures",
		}),
		TranscriptionEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcription_empty_total",
			Help: "Total number of transcriptions that produced empty text",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_transcription_duration_seconds",
			Help:    "Duration of transcription engine calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		LinesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_transcript_lines_written_total",
			Help: "Total number of timestamped lines written to the transcript",
		}),

		// Batch job metrics
		BatchJobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_batch_jobs_completed_total",
			Help: "Total number of batch transcription jobs completed",
		}),
		BatchJobsCanceled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_batch_jobs_canceled_total",
			Help: "Total number of batch transcription jobs canceled",
		}),
		BatchJobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_batch_jobs_failed_total",
			Help: "Total number of batch transcription jobs failed",
		}),

		// Post-processing metrics
		PostProcessSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_postprocess_successes_total",
			Help: "Total number of successful post-processing runs",
		}),
		PostProcessFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_postprocess_failures_total",
			Help: "Total number of failed post-processing runs",
		}),
		PostProcessRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "whisper_postprocess_retries_total",
			Help: "Total number of post-processing request retries",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whisper_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrameCaptured increments the frames captured counter
func (m *Metrics) RecordFrameCaptured() {
	m.FramesCaptured.Inc()
}

// RecordFrameDiscarded increments the frames discarded counter
func (m *Metrics) RecordFrameDiscarded() {
	m.FramesDiscarded.Inc()
}

// RecordFrameConsumed increments the frames consumed counter
func (m *Metrics) RecordFrameConsumed() {
	m.FramesConsumed.Inc()
}

// SetQueueDepth sets the current frame queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordSessionStarted increments the sessions started counter
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionStopped records a stopped session and its duration
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionsStopped.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordUtteranceEmitted records a closed utterance and its duration
func (m *Metrics) RecordUtteranceEmitted(durationSeconds float64) {
	m.UtterancesEmitted.Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordTranscriptionSuccess records a transcription that produced text
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionEmpty records a transcription with empty text
func (m *Metrics) RecordTranscriptionEmpty(durationSeconds float64) {
	m.TranscriptionEmpty.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordLineWritten increments the transcript lines counter
func (m *Metrics) RecordLineWritten() {
	m.LinesWritten.Inc()
}

// RecordBatchJob records a finished batch job by terminal state
func (m *Metrics) RecordBatchJob(status string) {
	switch status {
	case "completed":
		m.BatchJobsCompleted.Inc()
	case "canceled":
		m.BatchJobsCanceled.Inc()
	default:
		m.BatchJobsFailed.Inc()
	}
}

// RecordPostProcessSuccess increments the post-processing success counter
func (m *Metrics) RecordPostProcessSuccess() {
	m.PostProcessSuccesses.Inc()
}

// RecordPostProcessFailure increments the post-processing failure counter
func (m *Metrics) RecordPostProcessFailure() {
	m.PostProcessFailures.Inc()
}

// RecordPostProcessRetry increments the post-processing retry counter
func (m *Metrics) RecordPostProcessRetry() {
	m.PostProcessRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
