// Package metrics はPrometheusメトリクスの収集と公開を行う。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はサービス層から使うメトリクスのインターフェース
type Recorder interface {
	TokenIssued()
	CheckinVerified(result string)
	StaleTokensReaped(count int64)
	ConnectionsChanged(count int)
	NotificationSent(recipientRole string)
	PushDelivered(ok bool)
}

// Collector は Recorder のPrometheus実装
type Collector struct {
	tokensIssued  prometheus.Counter
	verifications *prometheus.CounterVec
	reaped        prometheus.Counter
	connections   prometheus.Gauge
	notifications *prometheus.CounterVec
	pushes        *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_checkin_tokens_issued_total",
			Help: "Number of QR check-in tokens issued",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_checkin_verifications_total",
			Help: "Check-in verification attempts by result",
		}, []string{"result"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_checkin_tokens_reaped_total",
			Help: "Expired unused tokens deleted by the reaper",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gym_notification_connections",
			Help: "Live notification websocket connections",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_notifications_sent_total",
			Help: "Persisted notifications by recipient role",
		}, []string{"recipient_role"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_notification_pushes_total",
			Help: "Websocket push attempts by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.tokensIssued,
		c.verifications,
		c.reaped,
		c.connections,
		c.notifications,
		c.pushes,
	)
	return c
}

func (c *Collector) TokenIssued() {
	c.tokensIssued.Inc()
}

func (c *Collector) CheckinVerified(result string) {
	c.verifications.WithLabelValues(result).Inc()
}

func (c *Collector) StaleTokensReaped(count int64) {
	c.reaped.Add(float64(count))
}

func (c *Collector) ConnectionsChanged(count int) {
	c.connections.Set(float64(count))
}

func (c *Collector) NotificationSent(recipientRole string) {
	c.notifications.WithLabelValues(recipientRole).Inc()
}

func (c *Collector) PushDelivered(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.pushes.WithLabelValues(result).Inc()
}

// Handler はスクレイプ用のHTTPハンドラー
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しない Recorder。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) TokenIssued()            {}
func (Nop) CheckinVerified(string)  {}
func (Nop) StaleTokensReaped(int64) {}
func (Nop) ConnectionsChanged(int)  {}
func (Nop) NotificationSent(string) {}
func (Nop) PushDelivered(bool)      {}
