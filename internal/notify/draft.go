package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
)

// DraftDispatcher hands the report to the local mail client for review.
// It writes an unsent .eml message and opens it; nothing is transmitted.
type DraftDispatcher struct {
	Logger *zap.Logger
	Dir    string
	From   string
	Open   func(path string) error
}

func NewDraft(logger *zap.Logger, dir, from string) *DraftDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftDispatcher{Logger: logger, Dir: dir, From: from, Open: browser.OpenFile}
}

func (d *DraftDispatcher) Dispatch(ctx context.Context, r *domain.Report) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("draft dir: %w", err)
	}
	path := filepath.Join(d.Dir, fmt.Sprintf("healthreport-%s.eml", r.GeneratedAt.Format("20060102T150405")))

	// X-Unsent makes Outlook open the file as an editable draft.
	msg := buildMessage(d.From, r.Recipients, r.Subject, r.HTML, r.GeneratedAt, header{"X-Unsent", "1"})
	if err := os.WriteFile(path, msg, 0o600); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	if err := d.Open(path); err != nil {
		return fmt.Errorf("open draft %s: %w", path, err)
	}

	d.Logger.Info("draft_opened", zap.String("path", path), zap.Int("recipients", len(r.Recipients)))
	return nil
}
