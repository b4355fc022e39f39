package metrics

const initOpLatencyBucket = 5

// getOpLatencyBucket returns microsecond buckets: fine grained for point
// operations served from memory, coarse for syncs and large batch writes.
func getOpLatencyBucket() []float64 {
	var buckets []float64
	for i := initOpLatencyBucket; i <= 100; i += 5 {
		buckets = append(buckets, float64(i))
	}
	for i := 200; i <= 2000; i += 200 {
		buckets = append(buckets, float64(i))
	}
	for i := 5000; i <= 100000; i += 5000 {
		buckets = append(buckets, float64(i))
	}
	return buckets
}
