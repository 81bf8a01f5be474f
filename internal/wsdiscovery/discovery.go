package wsdiscovery

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/onvifdiscovery/internal/logging"
	"github.com/muurk/onvifdiscovery/internal/transport"
)

// Options tunes a Discoverer. Zero values select the defaults.
type Options struct {
	// ProbeInterval between probe re-sends (DefaultProbeInterval when zero)
	ProbeInterval time.Duration

	// Endpoint probes are sent to (MulticastEndpoint when nil)
	Endpoint *net.UDPAddr
}

// Discoverer runs WS-Discovery over the transports produced by a factory
type Discoverer struct {
	factory transport.Factory
	opts    Options
}

// NewDiscoverer creates a Discoverer over factory
func NewDiscoverer(factory transport.Factory, opts Options) *Discoverer {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	if opts.Endpoint == nil {
		opts.Endpoint = MulticastEndpoint()
	}
	return &Discoverer{factory: factory, opts: opts}
}

// Stream delivers devices as they clear deduplication.
//
// Devices is closed once every session has finished. Err is only
// meaningful after that.
type Stream struct {
	devices <-chan Device
	err     error
}

// Devices returns the device channel
func (s *Stream) Devices() <-chan Device {
	return s.devices
}

// Err returns the error that ended discovery, or nil when it ended by
// timeout or caller cancellation. Call it after Devices is closed.
func (s *Stream) Err() error {
	return s.err
}

// Wait drains the remaining devices and returns Err
func (s *Stream) Wait() error {
	for range s.devices {
	}
	return s.err
}

// Discover starts one session per transport and streams deduplicated
// devices until timeout elapses or ctx is canceled.
//
// Failing to obtain any transport is reported here, synchronously. Failures
// after startup (a probe that cannot be sent) end the stream and surface
// through Stream.Err.
func (d *Discoverer) Discover(ctx context.Context, timeout time.Duration) (*Stream, error) {
	if timeout <= 0 {
		return nil, NewInvalidArgumentError("timeout must be positive")
	}

	transports, err := d.factory.Transports()
	if err != nil {
		return nil, NewNoInterfacesError(err)
	}
	if len(transports) == 0 {
		return nil, NewNoInterfacesError(nil)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	g, gctx := errgroup.WithContext(runCtx)

	seen := NewSeenSet()
	out := newSink()

	dedup := newGate(seen, out)
	admit := func(dev Device) {
		if !dedup.pass(dev) {
			logging.Debug("Duplicate device dropped",
				zap.String("interface", dev.Interface),
				zap.String("address", dev.Address),
				zap.Strings("xaddrs", dev.XAddresses),
			)
			return
		}
		logging.LogDevice(dev.Interface, dev.Address, dev.Model, dev.Mfr, dev.XAddresses)
	}

	logging.Info("Discovery started",
		zap.Int("transports", len(transports)),
		zap.Duration("timeout", timeout),
	)

	for _, t := range transports {
		s := &session{
			transport: t,
			endpoint:  d.opts.Endpoint,
			interval:  d.opts.ProbeInterval,
			emit:      admit,
		}
		g.Go(func() error {
			return s.run(gctx)
		})
	}

	stream := &Stream{devices: out.out}

	go func() {
		defer cancel()

		err := g.Wait()
		switch {
		case err != nil:
			logging.Error("Discovery failed", zap.Error(err))
		case ctx.Err() != nil:
			logging.Info("Discovery canceled by caller", zap.Int("addresses", seen.Len()))
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			logging.Info("Discovery timeout elapsed", zap.Int("addresses", seen.Len()))
		}

		stream.err = err
		out.close()
	}()

	return stream, nil
}

// DiscoverList collects every device of a run. On failure the devices
// received before it are returned along with the error.
func (d *Discoverer) DiscoverList(ctx context.Context, timeout time.Duration) ([]Device, error) {
	stream, err := d.Discover(ctx, timeout)
	if err != nil {
		return nil, err
	}

	devices := []Device{}
	for dev := range stream.Devices() {
		devices = append(devices, dev)
	}
	return devices, stream.Err()
}

// DiscoverFunc calls fn for every device, in stream order, then returns
// the stream's error.
func (d *Discoverer) DiscoverFunc(ctx context.Context, timeout time.Duration, fn func(Device)) error {
	stream, err := d.Discover(ctx, timeout)
	if err != nil {
		return err
	}

	for dev := range stream.Devices() {
		fn(dev)
	}
	return stream.Err()
}

func defaultDiscoverer() *Discoverer {
	return NewDiscoverer(transport.NewInterfaceFactory(transport.FactoryConfig{}), Options{})
}

// Discover runs discovery on every eligible interface with default options
func Discover(ctx context.Context, timeout time.Duration) (*Stream, error) {
	return defaultDiscoverer().Discover(ctx, timeout)
}

// DiscoverList is Discoverer.DiscoverList with default options
func DiscoverList(ctx context.Context, timeout time.Duration) ([]Device, error) {
	return defaultDiscoverer().DiscoverList(ctx, timeout)
}

// DiscoverFunc is Discoverer.DiscoverFunc with default options
func DiscoverFunc(ctx context.Context, timeout time.Duration, fn func(Device)) error {
	return defaultDiscoverer().DiscoverFunc(ctx, timeout, fn)
}
