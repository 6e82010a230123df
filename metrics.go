package auth

import "github.com/prometheus/client_golang/prometheus"

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// failure reasons, kept distinct internally even when surfaced uniformly
const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonMisconfigured      = "misconfigured"
	ReasonInvalidToken       = "invalid_token"
	ReasonExpiredToken       = "expired_token"
	ReasonUnknownSubject     = "unknown_subject"
	ReasonStoreError         = "store_error"
)

var (
	// AuthFailuresTotal counts rejected authentications by transport and internal reason.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseauth_authentication_failures_total",
			Help: "Rejected authentications",
		},
		[]string{"transport", "reason"},
	)

	// AuthSuccessTotal counts admitted requests and connections.
	AuthSuccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseauth_authentication_success_total",
			Help: "Successful authentications",
		},
		[]string{"transport"},
	)

	// RoleDecisionsTotal counts committed trainer application decisions.
	RoleDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courseauth_role_decisions_total",
			Help: "Trainer application decisions",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthFailuresTotal,
		AuthSuccessTotal,
		RoleDecisionsTotal,
	)
}

// failureReason maps an internal authentication error to its metric label
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTokenExpiredError(err):
		return ReasonExpiredToken
	case IsTokenInvalidError(err):
		return ReasonInvalidToken
	case HasTextCode(err, TextCodeServerMisconfigured):
		return ReasonMisconfigured
	case IsNotFound(err):
		return ReasonUnknownSubject
	default:
		return ReasonStoreError
	}
}
