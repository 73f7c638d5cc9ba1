package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/domain"
)

// Dispatcher delivers a rendered report through one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, r *domain.Report) error
}

// New returns the dispatcher selected by cfg.Dispatch. Exactly one channel is
// ever used for a run.
func New(cfg *config.Config, smtpPassword string, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.Dispatch {
	case config.DispatchSMTP:
		return NewSMTP(logger, SMTPConfig{
			Host:        cfg.SMTPServer,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    smtpPassword,
			DialTimeout: cfg.Timeouts.SMTPDial,
			SendTimeout: cfg.Timeouts.SMTPSend,
		}), nil
	case config.DispatchDraft:
		return NewDraft(logger, cfg.DraftDir, cfg.SMTPUser), nil
	default:
		return nil, fmt.Errorf("unknown dispatch channel %q", cfg.Dispatch)
	}
}
