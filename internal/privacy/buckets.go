package privacy

// UnknownBucket is reported for negative or missing metric values.
const UnknownBucket = "unknown"

// bucket is one half-open interval [prev upper, Upper) with its wire label.
type bucket struct {
	upper int64 // exclusive
	label string
}

// bucketize maps v into a fixed monotonic bucket table. Values past the
// last boundary get the overflow label.
func bucketize(v int64, table []bucket, overflow string) string {
	if v < 0 {
		return UnknownBucket
	}
	for _, b := range table {
		if v < b.upper {
			return b.label
		}
	}
	return overflow
}

var elapsedBuckets = []bucket{
	{100, "<100ms"},
	{500, "100-500ms"},
	{1000, "500ms-1s"},
	{5000, "1-5s"},
	{10000, "5-10s"},
	{30000, "10-30s"},
	{60000, "30s-1m"},
}

// ElapsedBucket maps an execution time in milliseconds to its label.
func ElapsedBucket(ms int64) string {
	return bucketize(ms, elapsedBuckets, ">1m")
}

var magnitudeBuckets = []bucket{
	{100_000, "<100K"},
	{1_000_000, "100K-1M"},
	{10_000_000, "1M-10M"},
	{100_000_000, "10M-100M"},
}

// MagnitudeBucket maps a large counter (gas used, steps computed, invoice
// amounts) to its label.
func MagnitudeBucket(v int64) string {
	return bucketize(v, magnitudeBuckets, ">100M")
}

var memoryBuckets = []bucket{
	{64 << 20, "<64MB"},
	{256 << 20, "64-256MB"},
	{1 << 30, "256MB-1GB"},
}

// MemoryBucket maps a memory size in bytes to its label.
func MemoryBucket(bytes int64) string {
	return bucketize(bytes, memoryBuckets, ">1GB")
}

var activeTaskBuckets = []bucket{
	{1, "0"},
	{2, "1"},
	{4, "2-3"},
	{6, "4-5"},
}

// ActiveTasksBucket maps a concurrent task count to its label.
func ActiveTasksBucket(n int64) string {
	return bucketize(n, activeTaskBuckets, ">5")
}

var totalTaskBuckets = []bucket{
	{1, "0"},
	{10, "1-10"},
	{50, "10-50"},
	{100, "50-100"},
	{500, "100-500"},
	{1000, "500-1K"},
}

// TotalTasksBucket maps a lifetime task count to its label.
func TotalTasksBucket(n int64) string {
	return bucketize(n, totalTaskBuckets, ">1K")
}
