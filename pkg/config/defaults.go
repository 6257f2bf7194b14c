package config

// Tree defaults.
const (
	DefaultTreeCapacity = 1024
	DefaultTreePool     = "freelist"
	DefaultTreeLayout   = "field"
)

// Check defaults.
const (
	DefaultCheckPolicy = "return"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Bench defaults.
const (
	DefaultBenchSeed   = 42
	DefaultBenchRepeat = 1
)

// Snapshot defaults.
const (
	DefaultSnapshotDirectory = "."
	DefaultSnapshotMaxSize   = "256MiB"
)

// DefaultBenchSizes returns the tree sizes measured by bench and plot.
func DefaultBenchSizes() []int {
	return []int{1 << 6, 1 << 8, 1 << 10, 1 << 12, 1 << 14}
}

// DefaultBenchOrders returns the insertion orders measured by bench.
func DefaultBenchOrders() []string {
	return []string{OrderAscending, OrderDescending, OrderRandom}
}
