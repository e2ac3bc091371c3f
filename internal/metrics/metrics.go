// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginResultSuccess  = "success"
	LoginResultFailure  = "failure"
	LoginResultError    = "error"
	LoginResultRedirect = "redirect"
)

// whoamiの応答モードのラベル値
const (
	WhoAmIModeUser  = "user"
	WhoAmIModeGuest = "guest"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(strategy, result string)
	RecordPrincipalMiss()
	RecordWhoAmI(mode string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	principalMiss  prometheus.Counter
	whoamiRequests *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_login_attempts_total",
			Help: "ストラテジー・結果別のログイン試行数",
		}, []string{"strategy", "result"}),
		principalMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_principal_miss_total",
			Help: "セッションのユーザーIDに対応するユーザーが見つからなかった回数",
		}),
		whoamiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_whoami_requests_total",
			Help: "応答モード別のwhoamiリクエスト数",
		}, []string{"mode"}),
	}

	reg.MustRegister(
		c.logins,
		c.principalMiss,
		c.whoamiRequests,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(strategy, result string) {
	c.logins.WithLabelValues(strategy, result).Inc()
}

// RecordPrincipalMiss はセッションのユーザーが解決できなかったことを記録する。
func (c *Collector) RecordPrincipalMiss() {
	c.principalMiss.Inc()
}

// RecordWhoAmI はwhoamiの応答モードを記録する。
func (c *Collector) RecordWhoAmI(mode string) {
	c.whoamiRequests.WithLabelValues(mode).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string, string) {}
func (Nop) RecordPrincipalMiss()       {}
func (Nop) RecordWhoAmI(string)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
