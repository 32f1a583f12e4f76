package domain

import "context"

// ConnState é o estado da conexão com o store compartilhado.
type ConnState int32

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnConnecting:
		return "connecting"
	default:
		return "disconnected"
	}
}

// ConnectionMonitor expõe o estado da conexão e recebe falhas observadas
// pelas operações. A implementação decide se a falha derruba a conexão.
type ConnectionMonitor interface {
	State() ConnState
	ReportFailure(err error)
	Ping(ctx context.Context) error
	Close() error
}
