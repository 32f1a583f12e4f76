package infra

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"login-ratelimit/loginlimit/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Monitor é o dono da conexão Redis do processo e mantém o estado tri-state
// (connected, connecting, disconnected).
//
// Transições só acontecem por CAS no estado atômico, então o sucesso de uma
// reconexão e o erro de uma operação em andamento não se atropelam.
// Não há timer de fundo: depois de esgotar as tentativas, uma nova rodada de
// reconexão só começa quando alguém consulta State(), no máximo uma vez por
// probeInterval.
type Monitor struct {
	rdb    redis.UniversalClient
	logger *slog.Logger

	state atomic.Int32

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	pingTimeout     time.Duration
	probe           *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type MonitorOption func(*Monitor)

func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// WithReconnectBackoff define o teto de tentativas e os intervalos do backoff exponencial.
func WithReconnectBackoff(maxRetries uint64, initial, max time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.maxRetries = maxRetries
		m.initialInterval = initial
		m.maxInterval = max
	}
}

func WithPingTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.pingTimeout = d }
}

// WithProbeInterval define o intervalo mínimo entre rodadas de reconexão
// enquanto desconectado.
func WithProbeInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.probe = rate.NewLimiter(rate.Every(d), 1) }
}

func NewMonitor(rdb redis.UniversalClient, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		rdb:             rdb,
		logger:          slog.Default(),
		maxRetries:      10,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     3 * time.Second,
		pingTimeout:     2 * time.Second,
		probe:           rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.state.Store(int32(domain.ConnDisconnected))
	return m
}

var _ domain.ConnectionMonitor = (*Monitor)(nil)

// Connect faz a conexão inicial (bloqueante) com backoff. Em caso de erro o
// monitor fica disconnected e o processo segue em fail-open.
func (m *Monitor) Connect(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(domain.ConnDisconnected), int32(domain.ConnConnecting)) {
		return nil
	}
	return m.reconnect(ctx)
}

func (m *Monitor) State() domain.ConnState {
	st := domain.ConnState(m.state.Load())
	if st == domain.ConnDisconnected && m.ctx.Err() == nil && m.probe.Allow() {
		m.startReconnect(int32(domain.ConnDisconnected))
	}
	return st
}

// ReportFailure recebe o erro de uma operação. Só erros de conexão/timeout
// derrubam o estado.
func (m *Monitor) ReportFailure(err error) {
	if !IsConnectionError(err) {
		return
	}
	if m.startReconnect(int32(domain.ConnConnected)) {
		m.logger.Warn("redis connection lost, reconnecting", slog.Any("error", err))
	}
}

func (m *Monitor) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()
	return m.rdb.Ping(ctx).Err()
}

// Close encerra reconexões pendentes e fecha o cliente Redis.
func (m *Monitor) Close() error {
	m.cancel()
	m.wg.Wait()
	m.state.Store(int32(domain.ConnDisconnected))
	return m.rdb.Close()
}

func (m *Monitor) startReconnect(from int32) bool {
	if m.ctx.Err() != nil {
		return false
	}
	if !m.state.CompareAndSwap(from, int32(domain.ConnConnecting)) {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.reconnect(m.ctx)
	}()
	return true
}

// reconnect assume estado connecting e termina em connected ou disconnected.
func (m *Monitor) reconnect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.initialInterval
	b.MaxInterval = m.maxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return m.Ping(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(b, m.maxRetries), ctx), func(err error, next time.Duration) {
		m.logger.Debug("redis ping failed",
			slog.Int("attempt", attempt),
			slog.Duration("next_retry", next),
			slog.Any("error", err))
	})
	if err != nil {
		m.state.Store(int32(domain.ConnDisconnected))
		m.logger.Warn("redis unavailable, rate limiter failing open",
			slog.Int("attempts", attempt),
			slog.Any("error", err))
		return err
	}

	m.state.Store(int32(domain.ConnConnected))
	if attempt > 1 {
		m.logger.Info("redis connection restored", slog.Int("attempts", attempt))
	}
	return nil
}

// IsConnectionError separa falhas de rede/timeout de erros de aplicação
// (ex: payload inválido), que não devem derrubar o estado da conexão.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
