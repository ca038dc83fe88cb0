// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認可フローの結果ラベル
const (
	AuthOutcomeIssued       = "issued"
	AuthOutcomeSucceeded    = "succeeded"
	AuthOutcomeRejected     = "rejected"
	AuthOutcomeInvalidToken = "invalid_token"
	AuthOutcomeError        = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ボット・ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthorization(outcome string)
	RecordOAuthLatency(duration time.Duration)
	RecordGreetingUpdated()
	RecordGreetingSent()
	RecordGreetingFailure(reason string)
	RecordStatesSwept(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authorizations  *prometheus.CounterVec
	oauthLatency    prometheus.Histogram
	greetingUpdated prometheus.Counter
	greetingSent    prometheus.Counter
	greetingFail    *prometheus.CounterVec
	statesSwept     prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greetbot_authorizations_total",
			Help: "OAuth認可フローの結果別件数",
		}, []string{"outcome"}),
		oauthLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greetbot_oauth_exchange_latency_seconds",
			Help:    "Discordとのトークン交換・ユーザー取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		greetingUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greetbot_greeting_updated_total",
			Help: "挨拶設定の更新回数",
		}),
		greetingSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greetbot_greeting_sent_total",
			Help: "新規メンバーへ送信した挨拶の合計数",
		}),
		greetingFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greetbot_greeting_fail_total",
			Help: "挨拶送信失敗の理由別件数",
		}, []string{"reason"}),
		statesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greetbot_oauth_states_swept_total",
			Help: "期限切れで削除されたstateトークン数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greetbot_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authorizations,
		c.oauthLatency,
		c.greetingUpdated,
		c.greetingSent,
		c.greetingFail,
		c.statesSwept,
		c.httpStatus,
	)

	return c
}

// RecordAuthorization は認可フローの結果を記録する。
func (c *Collector) RecordAuthorization(outcome string) {
	c.authorizations.WithLabelValues(outcome).Inc()
}

// RecordOAuthLatency はDiscord OAuth呼び出しのレイテンシを記録する。
func (c *Collector) RecordOAuthLatency(duration time.Duration) {
	c.oauthLatency.Observe(duration.Seconds())
}

// RecordGreetingUpdated は挨拶設定の更新を記録する。
func (c *Collector) RecordGreetingUpdated() {
	c.greetingUpdated.Inc()
}

// RecordGreetingSent は挨拶送信成功を記録する。
func (c *Collector) RecordGreetingSent() {
	c.greetingSent.Inc()
}

// RecordGreetingFailure は挨拶送信失敗を記録する。
func (c *Collector) RecordGreetingFailure(reason string) {
	c.greetingFail.WithLabelValues(reason).Inc()
}

// RecordStatesSwept はスイープで削除したstate数を記録する。
func (c *Collector) RecordStatesSwept(count int64) {
	c.statesSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
