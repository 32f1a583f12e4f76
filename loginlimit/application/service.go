package application

import (
	"context"
	"log/slog"
	"time"

	"login-ratelimit/loginlimit/domain"

	"golang.org/x/time/rate"
)

// Service é a fachada do limitador consumida pela camada HTTP.
//
// Ele não sabe nada sobre HTTP (headers/status). Toda falha de store é
// recuperada aqui (fail-open); só ErrInvalidIdentity chega ao chamador.
type Service struct {
	engine   Engine
	conn     domain.ConnectionMonitor
	stats    domain.StatsStore
	logger   *slog.Logger
	messages Messages
	now      func() time.Time
	timeout  time.Duration

	// downLog amostra o warning de store fora, para não inundar o log
	// durante uma queda.
	downLog *rate.Sometimes
}

type ServiceOption func(*Service)

// WithConnection injeta o monitor de conexão. Sem ele o store é
// considerado sempre conectado (ex: MemoryStore).
func WithConnection(c domain.ConnectionMonitor) ServiceOption {
	return func(s *Service) { s.conn = c }
}

func WithStats(st domain.StatsStore) ServiceOption {
	return func(s *Service) { s.stats = st }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithLocale(locale string) ServiceOption {
	return func(s *Service) { s.messages = Messages{Locale: locale} }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithOpTimeout limita cada chamada ao store. Timeout conta como store fora.
func WithOpTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

func WithDownLogInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.downLog = &rate.Sometimes{Interval: d} }
}

func NewService(engine Engine, opts ...ServiceOption) *Service {
	s := &Service{
		engine:   engine,
		logger:   slog.Default(),
		messages: Messages{Locale: DefaultLocale},
		now:      time.Now,
		timeout:  2 * time.Second,
		downLog:  &rate.Sometimes{Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine.Logger == nil {
		s.engine.Logger = s.logger
	}
	return s
}

// CheckRateLimit decide se o login pode prosseguir.
func (s *Service) CheckRateLimit(ctx context.Context, email string) (domain.Decision, error) {
	id, err := domain.NormalizeIdentity(email)
	if err != nil {
		return domain.Decision{}, err
	}
	if !s.connected() {
		s.warnDown("check")
		return domain.Allow(0), nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	dec, err := s.engine.Evaluate(ctx, id, s.now())
	if err != nil {
		s.fail(ctx, "check", id, err)
		return domain.Allow(0), nil
	}
	dec.Message = s.messages.For(dec)

	s.record(ctx, domain.StatsEvent{Identity: id, Outcome: domain.OutcomeOf(dec), Reason: dec.Reason})
	return dec, nil
}

// RecordFailedAttempt registra uma falha de autenticação. No-op com store fora.
func (s *Service) RecordFailedAttempt(ctx context.Context, email string) error {
	id, err := domain.NormalizeIdentity(email)
	if err != nil {
		return err
	}
	if !s.connected() {
		s.warnDown("record-failed")
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.engine.RecordFailure(ctx, id, s.now()); err != nil {
		s.fail(ctx, "record-failed", id, err)
	}
	return nil
}

// ResetRateLimit limpa o estado após login bem-sucedido. No-op com store fora.
func (s *Service) ResetRateLimit(ctx context.Context, email string) error {
	id, err := domain.NormalizeIdentity(email)
	if err != nil {
		return err
	}
	if !s.connected() {
		s.warnDown("reset")
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.engine.Reset(ctx, id); err != nil {
		s.fail(ctx, "reset", id, err)
	}
	return nil
}

// GetRateLimitStatus devolve o estado informativo (zerado com store fora).
func (s *Service) GetRateLimitStatus(ctx context.Context, email string) (domain.Status, error) {
	id, err := domain.NormalizeIdentity(email)
	if err != nil {
		return domain.Status{}, err
	}
	now := s.now()
	zero := domain.Status{NextResetTime: domain.UnixMilli(now)}
	if !s.connected() {
		s.warnDown("status")
		return zero, nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	st, err := s.engine.Status(ctx, id, now)
	if err != nil {
		s.fail(ctx, "status", id, err)
		return zero, nil
	}
	return st, nil
}

// ConnState expõe o estado da conexão (ex: health check).
func (s *Service) ConnState() domain.ConnState {
	if s.conn == nil {
		return domain.ConnConnected
	}
	return s.conn.State()
}

// Close fecha a conexão com o store. O Service é o único dono dela.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Service) connected() bool {
	return s.ConnState() == domain.ConnConnected
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) warnDown(op string) {
	s.downLog.Do(func() {
		s.logger.Warn("rate limit store unavailable, failing open",
			slog.String("operation", op),
			slog.String("conn_state", s.ConnState().String()))
	})
}

func (s *Service) fail(ctx context.Context, op string, id domain.Identity, err error) {
	s.logger.Error("rate limit operation failed, failing open",
		slog.String("operation", op),
		slog.String("identity", id.Masked()),
		slog.Any("error", err))
	if s.conn != nil {
		s.conn.ReportFailure(err)
	}
	if op == "check" {
		s.record(ctx, domain.StatsEvent{Identity: id, Outcome: domain.OutcomeFailOpen})
	}
}

const statsTimeout = 500 * time.Millisecond

// record é best-effort: erro de estatística nunca afeta a decisão.
func (s *Service) record(ctx context.Context, ev domain.StatsEvent) {
	if s.stats == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	// o ctx da operação pode já ter expirado (fail-open por timeout)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
	defer cancel()
	if err := s.stats.Record(ctx, ev); err != nil {
		s.logger.Debug("stats record failed", slog.Any("error", err))
	}
}
