package app

import (
	"github.com/nats-io/nats.go"

	"taptapgo/internal/config"
	"taptapgo/internal/events"
)

// NewEventPublisher connects to NATS when enabled. With NATS disabled it
// returns a nil publisher and connection, and notifications are only logged.
func NewEventPublisher(cfg config.NATSConfig, appName string) (*events.Publisher, *nats.Conn, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	nc, err := events.Connect(events.Config{
		URL:           cfg.URL,
		Name:          appName,
		SubjectPrefix: cfg.SubjectPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return events.NewPublisher(nc, appName, cfg.SubjectPrefix), nc, nil
}
