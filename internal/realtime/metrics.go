package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_connections_total",
			Help: "Number of websocket connections accepted",
		},
	)

	eventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_received_total",
			Help: "Number of inbound events by event name",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(connectionsOpened)
	prometheus.MustRegister(eventsReceived)
}

var knownEvents = map[string]bool{
	EventSetUserID:          true,
	EventSavePublicMessage:  true,
	EventJoinPrivateRoom:    true,
	EventSetPrivateMessage:  true,
	EventGetFavoriteUserIDs: true,
	EventResetUnread:        true,
}

// CountEvent records one inbound event for the metrics endpoint.
// Unrecognized names share one label to keep cardinality bounded.
func CountEvent(name string) {
	if !knownEvents[name] {
		name = "unknown"
	}
	eventsReceived.WithLabelValues(name).Inc()
}
