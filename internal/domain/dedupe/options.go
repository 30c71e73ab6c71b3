package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithKeyFunc replaces the key folding applied before lookup. The default
// lowercases and collapses whitespace.
func WithKeyFunc(fold func(string) string) Option {
	return func(d *inMemoryDeduper) {
		if fold != nil {
			d.fold = fold
		}
	}
}

// WithCapacity presizes the seen set.
func WithCapacity(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.hint = n
		}
	}
}
