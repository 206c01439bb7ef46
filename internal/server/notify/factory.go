package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/config"
)

// New builds the notifier selected by cfg.Notifier.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "", config.NotifierLog:
		return NewLogNotifier(log), nil
	case config.NotifierSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp notifier: host is empty")
		}
		return NewSMTPNotifier(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}), nil
	case config.NotifierKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka notifier: no brokers")
		}
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.NotifierRedis:
		return NewRedisNotifier(cfg.RedisAddr, cfg.RedisStream), nil
	case config.NotifierSES:
		if cfg.SESFrom == "" {
			return nil, fmt.Errorf("ses notifier: sender is empty")
		}
		return NewSESNotifier(ctx, SESConfig{
			Region:          cfg.SESRegion,
			From:            cfg.SESFrom,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
			Endpoint:        cfg.SESEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
