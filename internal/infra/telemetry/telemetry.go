// Package telemetry registers the Prometheus counters the service emits
// beyond the per-route HTTP metrics collected in middleware.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts successfully created accounts by type.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "registrations_total",
		Help:      "Accounts created, labelled by account type.",
	}, []string{"account_type"})

	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "logins_total",
		Help:      "Login attempts, labelled by account type and result.",
	}, []string{"account_type", "result"})

	// LockoutsTotal counts accounts locked by repeated login failures.
	LockoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "lockouts_total",
		Help:      "Accounts locked after exceeding the failed login threshold.",
	}, []string{"account_type"})

	// OTPIssuedTotal counts verification codes generated and dispatched.
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounts",
		Name:      "otp_issued_total",
		Help:      "One-time verification codes issued, labelled by purpose.",
	}, []string{"purpose"})
)

// Login result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultLocked  = "locked"
)
