package events

import (
	"github.com/mahalnishan/crm/pkg/config"
	"go.uber.org/zap"
)

// New returns a RabbitMQ publisher, or a NopPublisher when no broker is configured
func New(cfg config.BrokerConfig, source string, log *zap.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		log.Info("Event broker not configured, work order events are disabled")
		return NopPublisher{}, nil
	}

	p, err := DialRabbit(cfg, source)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to event broker",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("exchange", cfg.Exchange))
	return p, nil
}
