package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProfileFailuresTotal counts recorded profile failures by deadline class
	// ("cooldown" or "disable") and the caller-supplied reason tag.
	ProfileFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authpool_profile_failures_total",
			Help: "Recorded profile failures by deadline class and reason.",
		},
		[]string{"class", "reason"},
	)

	// CooldownsClearedTotal counts expired windows removed by the sweeper.
	CooldownsClearedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authpool_cooldowns_cleared_total",
			Help: "Expired unavailability windows cleared by the sweeper.",
		},
		[]string{"class"},
	)

	// SweepRunsTotal counts sweep passes over the persisted pool.
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authpool_sweep_runs_total",
			Help: "Sweep passes over the shared profile store.",
		},
	)

	// BlockedProfiles is the number of profiles currently inside an
	// unavailability window, sampled after each sweep.
	BlockedProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authpool_blocked_profiles",
			Help: "Profiles currently inside an unavailability window.",
		},
	)
)
