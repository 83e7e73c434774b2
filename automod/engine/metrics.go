package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "chatmod_message_duration_sec",
	Help: "Total duration of message processing, all rules and responses",
}, []string{"type"})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_messages_processed",
	Help: "Number of messages processed in configured guilds",
}, []string{"type"})

var messageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_message_errors",
	Help: "Number of messages which failed processing",
}, []string{"type"})

var ruleMatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_rule_matches",
	Help: "Number of rule matches which ran responses",
}, []string{"rule"})

var ruleCooldownCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_rule_cooldowns",
	Help: "Number of rule matches suppressed by cooldown",
}, []string{"rule"})

var responseCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_responses",
	Help: "Number of responses executed, by verb and outcome",
}, []string{"verb", "status"})

var configReloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_config_reloads",
	Help: "Number of configuration reload attempts, by outcome",
}, []string{"status"})

var configRuleCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatmod_config_rules",
	Help: "Number of rules in the active configuration",
})
