package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resumeCraft/internal/errcode"
)

const namespace = "resumecraft"

var (
	editorOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "ops_total",
			Help:      "编辑操作总数，按操作与错误码划分。",
		},
		[]string{"op", "code"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "active_sessions",
			Help:      "当前打开的编辑会话数量。",
		},
	)

	captureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "captures_total",
			Help:      "缩略图/PDF 捕获次数，按类型与结果划分。",
		},
		[]string{"kind", "result"},
	)
)

// ObserveEditorOp 记录一次编辑操作的结果。
func ObserveEditorOp(op string, err error) {
	editorOpsTotal.WithLabelValues(op, codeLabel(err)).Inc()
}

// SetActiveSessions 更新会话数量。
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveCapture 记录一次捕获，kind 为 thumbnail 或 pdf。
func ObserveCapture(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	captureTotal.WithLabelValues(kind, result).Inc()
}

func codeLabel(err error) string {
	return strconv.Itoa(errcode.Of(err))
}

// Handler 返回 /metrics 的处理器。
func Handler() http.Handler {
	return promhttp.Handler()
}
