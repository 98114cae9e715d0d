//go:build linux

package memfd

// Option configures an Allocator.
//
// Example:
//
//	a := memfd.New(memfd.WithName("compositor"), memfd.WithStrideAlignment(256))
type Option func(*options)

// options holds Allocator configuration.
type options struct {
	name        string
	seal        bool
	strideAlign uint32
}

// defaultOptions returns the default allocator options.
func defaultOptions() options {
	return options{
		name:        "dmabuf",
		seal:        true,
		strideAlign: 64,
	}
}

// WithName sets the memfd name shown in /proc/<pid>/fd.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithSeal controls whether buffers are sealed against resizing.
// Sealing is on by default; importers such as udmabuf require it.
func WithSeal(seal bool) Option {
	return func(o *options) {
		o.seal = seal
	}
}

// WithStrideAlignment sets the row alignment in bytes. Values below 1 are
// treated as 1. The default of 64 satisfies common GPU import rules.
func WithStrideAlignment(align uint32) Option {
	return func(o *options) {
		o.strideAlign = max(align, 1)
	}
}
