package dm

// Options bundles the per-call modifiers a command accepts: protocol flags,
// udev notification flags, and an optional caller-chosen cookie nonce.
// Options are immutable once built; the command masks the flags against its
// own allow list before they reach the header.
type Options struct {
	flags     Flags
	udevFlags UdevFlags
	cookie    uint16
	eventNr   uint32
}

// Option modifies a single command invocation.
type Option func(*Options)

// WithFlags adds protocol flags to the request. Flags the command does not
// accept are dropped.
func WithFlags(f Flags) Option {
	return func(o *Options) {
		o.flags |= f
	}
}

// WithUdevFlags sets the udev notification flags carried in the event
// correlator field. Include UdevPrimarySource on state-changing commands to
// enable the udev semaphore handshake.
func WithUdevFlags(f UdevFlags) Option {
	return func(o *Options) {
		o.udevFlags |= f
	}
}

// WithCookie supplies an explicit non-zero cookie nonce instead of a randomly
// generated one, for callers that correlate a batch of operations under one
// cookie. With an explicit nonce the semaphore key is fixed, so a key
// collision fails the call instead of retrying with a fresh nonce.
func WithCookie(nonce uint16) Option {
	return func(o *Options) {
		o.cookie = nonce
	}
}

// WithEventNr sets the event number carried in the request. DeviceWait blocks
// until the device's event counter passes this value; other commands ignore
// it.
func WithEventNr(n uint32) Option {
	return func(o *Options) {
		o.eventNr = n
	}
}

func newOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
