package engine

// The simulation never shares an RNG stream between cells. Every visited cell
// derives its own generator from (world seed, tick, world coordinate), so a
// tick's random choices are reproducible regardless of worker count or chunk
// iteration order.

func mix64(v uint64) uint64 {
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}

func cellSeed(seed int64, tick uint64, x, y int) uint64 {
	h := mix64(uint64(seed) ^ 0x9e3779b97f4a7c15)
	h = mix64(h ^ tick)
	h = mix64(h ^ (uint64(uint32(x)) | uint64(uint32(y))<<32))
	return h
}

// chunkScanDir picks the x scan direction for one chunk on one tick.
// Alternating the direction prevents a systematic horizontal lean in powder
// and liquid flow.
func chunkScanDir(seed int64, tick uint64, cx, cy int) int {
	if cellSeed(seed, tick, cx, cy)&1 == 0 {
		return -1
	}
	return 1
}

// cellRand is a splitmix64 stream.
type cellRand struct {
	state uint64
}

func (r *cellRand) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	return mix64(r.state)
}

func (r *cellRand) float32() float32 {
	return float32(r.next()>>40) / float32(1<<24)
}

// dir returns -1 or 1 with equal probability.
func (r *cellRand) dir() int8 {
	if r.next()&1 == 0 {
		return -1
	}
	return 1
}

func (r *cellRand) onceIn(n uint64) bool {
	return r.next()%n == 0
}

func (r *cellRand) chance(p float32) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return r.float32() < p
}
