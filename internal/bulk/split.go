package bulk

// Split partitions a into n contiguous parts whose lengths differ by at most
// one, longer parts first. Parts may be empty when n exceeds len(a).
func Split[T any](a []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	k, m := len(a)/n, len(a)%n
	out := make([][]T, n)
	for i := 0; i < n; i++ {
		lo := i*k + min(i, m)
		hi := (i+1)*k + min(i+1, m)
		out[i] = a[lo:hi]
	}
	return out
}
