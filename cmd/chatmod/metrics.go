package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_gateway_events",
	Help: "Number of message events received from the chat gateway",
}, []string{"type"})

var gatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatmod_gateway_connected",
	Help: "Whether the chat gateway connection is currently up (1) or down (0)",
})
