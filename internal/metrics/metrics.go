package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// 作业动作计数
	activityTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "activity_transitions_total",
			Help:      "Worker activity transitions by process type and result",
		},
		[]string{"process_type", "result"},
	)

	// 报工结果
	productionEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "production_entries_total",
			Help:      "Production quantity reports by result",
		},
		[]string{"result"},
	)

	// 倒冲缺料次数
	backflushShortagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "backflush_shortages_total",
			Help:      "Backflush attempts rejected for insufficient stock, by check stage",
		},
		[]string{"stage"},
	)

	// ERP 请求耗时
	erpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mes",
			Name:      "erp_request_duration_seconds",
			Help:      "ERP document request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"document", "status"},
	)

	batchNumbersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "batch_numbers_generated_total",
			Help:      "Batch numbers generated for production receipts",
		},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(activityTransitionsTotal)
	registry.MustRegister(productionEntriesTotal)
	registry.MustRegister(backflushShortagesTotal)
	registry.MustRegister(erpRequestDuration)
	registry.MustRegister(batchNumbersTotal)

	// Go 运行时指标
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry 供测试读取指标
func Registry() *prometheus.Registry {
	return registry
}

// RecordActivity 记录作业动作
func RecordActivity(processType, result string) {
	activityTransitionsTotal.WithLabelValues(processType, result).Inc()
}

// RecordProductionEntry 记录报工结果
func RecordProductionEntry(result string) {
	productionEntriesTotal.WithLabelValues(result).Inc()
}

// RecordShortage 记录缺料，stage 为 preflight 或 allocation
func RecordShortage(stage string) {
	backflushShortagesTotal.WithLabelValues(stage).Inc()
}

// ObserveERPRequest 记录 ERP 请求耗时
func ObserveERPRequest(document, status string, seconds float64) {
	erpRequestDuration.WithLabelValues(document, status).Observe(seconds)
}

func RecordBatchNumber() {
	batchNumbersTotal.Inc()
}
