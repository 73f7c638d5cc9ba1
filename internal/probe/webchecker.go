package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/domain"
)

// WebSuccessMessage is reported when the full login/logout round trip worked.
const WebSuccessMessage = "Verificación web completada correctamente."

// WebState is a step of the web check flow.
type WebState string

const (
	StateNavigate     WebState = "NavigateInitial"
	StateAuthenticate WebState = "AuthenticateFlow"
	StateAcknowledge  WebState = "AcknowledgeFlow"
	StateAwaitSuccess WebState = "AwaitSuccessIndicator"
	StateLogout       WebState = "Logout"
	StateAwaitReturn  WebState = "AwaitReturnIndicator"
	StateDone         WebState = "Done"
)

type WebTimeouts struct {
	Navigation       time.Duration
	SuccessIndicator time.Duration
	ReturnIndicator  time.Duration
	Poll             time.Duration
}

func DefaultWebTimeouts() WebTimeouts {
	return WebTimeouts{
		Navigation:       20 * time.Second,
		SuccessIndicator: 20 * time.Second,
		ReturnIndicator:  10 * time.Second,
		Poll:             time.Second,
	}
}

// HTMLWebChecker drives a login (or OK-button) and logout flow over plain
// HTTP, locating elements with CSS selectors. It never runs scripts, so it is
// always headless.
type HTMLWebChecker struct {
	Logger   *zap.Logger
	Timeouts WebTimeouts
	Resolver hostResolver
}

func NewHTMLWebChecker(logger *zap.Logger, t WebTimeouts) *HTMLWebChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultWebTimeouts()
	if t.Navigation <= 0 {
		t.Navigation = def.Navigation
	}
	if t.SuccessIndicator <= 0 {
		t.SuccessIndicator = def.SuccessIndicator
	}
	if t.ReturnIndicator <= 0 {
		t.ReturnIndicator = def.ReturnIndicator
	}
	if t.Poll <= 0 {
		t.Poll = def.Poll
	}
	return &HTMLWebChecker{Logger: logger, Timeouts: t, Resolver: net.DefaultResolver}
}

func (w *HTMLWebChecker) CheckWeb(ctx context.Context, req WebRequest) (out domain.ProbeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failuref("unexpected error during web check: %v", r)
		}
	}()

	s, err := newSession()
	if err != nil {
		return domain.Failure(err)
	}
	defer s.close()

	state, err := w.run(ctx, s, req)
	if err != nil {
		w.Logger.Warn("web_check_failed",
			zap.String("url", req.URL),
			zap.String("state", string(state)),
			zap.Error(err),
		)
		var te *TimeoutError
		if errors.As(err, &te) {
			return domain.Failuref("%s during %s", err, state)
		}
		return domain.Failuref("%s failed: %s", state, err)
	}
	return domain.Success(WebSuccessMessage)
}

// run walks the flow and returns the state it stopped in. There are no
// retries: the first error ends the check.
func (w *HTMLWebChecker) run(ctx context.Context, s *session, req WebRequest) (WebState, error) {
	sel := req.Selectors
	t := w.Timeouts

	w.Logger.Debug("web_navigate", zap.String("url", req.URL))
	p, err := s.get(ctx, req.URL, t.Navigation)
	if err != nil {
		return StateNavigate, w.annotateDNS(ctx, req.URL, err)
	}

	var (
		state           WebState
		returnIndicator string
	)
	if req.User != "" && req.Password != "" {
		state, returnIndicator = StateAuthenticate, sel.UserInput
		p, err = s.login(ctx, p, sel.UserInput, sel.PassInput, sel.SubmitButton, req.User, req.Password, t.Navigation)
	} else {
		state, returnIndicator = StateAcknowledge, sel.OKButton
		p, err = s.click(ctx, p, sel.OKButton, t.Navigation)
	}
	if err != nil {
		return state, err
	}
	w.Logger.Debug("web_entered", zap.String("url", req.URL), zap.String("flow", string(state)))

	if p, err = s.waitFor(ctx, p, sel.SuccessIndicator, t.SuccessIndicator, t.Poll); err != nil {
		return StateAwaitSuccess, err
	}
	if p, err = s.click(ctx, p, sel.LogoutButton, t.Navigation); err != nil {
		return StateLogout, err
	}
	if _, err = s.waitFor(ctx, p, returnIndicator, t.ReturnIndicator, t.Poll); err != nil {
		return StateAwaitReturn, err
	}
	return StateDone, nil
}

func (w *HTMLWebChecker) annotateDNS(ctx context.Context, raw string, err error) error {
	host := hostOf(raw)
	if host == "" || w.Resolver == nil {
		return err
	}
	if class := classifyHost(ctx, w.Resolver, host); class != DNSResolves {
		return fmt.Errorf("%w (dns=%s)", err, class)
	}
	return err
}
