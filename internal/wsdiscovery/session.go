package wsdiscovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/transport"
)

// SessionState is the lifecycle stage of a per-interface session
type SessionState int

const (
	StateStarting SessionState = iota
	StateProbing
	StateDraining
	StateClosed
)

// String returns the state name used in logs
func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateProbing:
		return "probing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", s)
	}
}

// session probes and listens on one transport. It owns the transport and
// closes it when run returns.
type session struct {
	transport transport.Transport
	endpoint  *net.UDPAddr
	interval  time.Duration

	// emit hands a correlated device to the orchestrator's dedup gate
	emit func(Device)
}

func (s *session) name() string {
	return s.transport.Name()
}

func (s *session) enter(state SessionState, fields ...zap.Field) {
	logging.LogSession(s.name(), state.String(), fields...)
}

// run blocks until ctx is done or sending fails. Only a send failure on a
// live context is returned as an error.
func (s *session) run(ctx context.Context) error {
	s.enter(StateStarting)
	defer func() {
		if err := s.transport.Close(); err != nil {
			logging.Debug("Transport close failed",
				zap.String("interface", s.name()),
				zap.Error(err),
			)
		}
		s.enter(StateClosed)
	}()

	messageID := uuid.New()
	probe, err := NewProbeMessage(messageID)
	if err != nil {
		return err
	}

	s.enter(StateProbing, zap.String("message_id", messageID.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.probe(gctx, probe)
	})
	g.Go(func() error {
		s.listen(gctx, messageID)
		return nil
	})

	err = g.Wait()
	s.enter(StateDraining)
	return err
}

// probe sends immediately and then once per interval until ctx is done
func (s *session) probe(ctx context.Context, payload []byte) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.transport.Send(ctx, payload, s.endpoint); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return NewSendError(s.name(), err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// listen consumes the receive stream until it closes. Receive errors and
// unusable datagrams are skipped.
func (s *session) listen(ctx context.Context, messageID uuid.UUID) {
	for dg := range s.transport.Receive(ctx) {
		if dg.Err != nil {
			logging.Debug("Receive failed, continuing",
				zap.String("interface", s.name()),
				zap.Error(dg.Err),
			)
			continue
		}
		s.handle(ctx, messageID, dg)
	}
}

func (s *session) handle(ctx context.Context, messageID uuid.UUID, dg transport.Datagram) {
	source := ""
	if dg.Source != nil {
		source = dg.Source.String()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.LogDatagram("Datagram handling panicked", s.name(), source, dg.Payload,
				fmt.Errorf("panic: %v", r))
		}
	}()

	env, err := DecodeProbeMatches(dg.Payload)
	if err != nil {
		logging.LogDatagram("Discarded undecodable datagram", s.name(), source, dg.Payload, err)
		return
	}
	if !IsMatchingResponse(messageID, env) {
		logging.LogDatagram("Discarded unrelated datagram", s.name(), source, dg.Payload, nil)
		return
	}

	device := NewDevice(env.Body.ProbeMatches[0], dg.Source)
	device.Interface = s.name()

	// Nothing is emitted once cancellation has been observed
	if ctx.Err() != nil {
		return
	}
	s.emit(device)
}
