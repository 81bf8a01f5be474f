package wsdiscovery

// sink decouples sessions from the consumer. Producers hand devices to an
// always-ready pump that queues them without bound, so a slow reader never
// blocks a session from observing cancellation.
type sink struct {
	in  chan Device
	out chan Device
}

func newSink() *sink {
	s := &sink{
		in:  make(chan Device),
		out: make(chan Device),
	}
	go s.pump()
	return s
}

// put queues d. It must not be called after close.
func (s *sink) put(d Device) {
	s.in <- d
}

// close stops intake. Queued devices are still delivered before the output
// channel closes.
func (s *sink) close() {
	close(s.in)
}

func (s *sink) pump() {
	defer close(s.out)

	var queue []Device
	for {
		if len(queue) == 0 {
			d, ok := <-s.in
			if !ok {
				return
			}
			queue = append(queue, d)
			continue
		}

		select {
		case d, ok := <-s.in:
			if !ok {
				for _, q := range queue {
					s.out <- q
				}
				return
			}
			queue = append(queue, d)
		case s.out <- queue[0]:
			queue[0] = Device{}
			queue = queue[1:]
		}
	}
}
