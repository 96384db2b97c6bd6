package l5tracks

// Default channel range in 0-based wire numbering. Channel 0 is reserved
// for installation-wide controls, leaving 15 voices.
const (
	DefaultFirstChannel uint8 = 1
	DefaultLastChannel  uint8 = 15
)

// ChannelPool hands out output channels to tracked objects. A channel is
// occupied iff a live object holds it. Not safe for concurrent use; the
// owning Tracker serialises access.
type ChannelPool struct {
	first    uint8
	occupied []bool
	inUse    int
}

// NewChannelPool creates a pool covering channels first..last inclusive.
// A reversed range yields an empty pool.
func NewChannelPool(first, last uint8) *ChannelPool {
	n := int(last) - int(first) + 1
	if n < 0 {
		n = 0
	}
	return &ChannelPool{first: first, occupied: make([]bool, n)}
}

// Acquire returns the lowest free channel, or false if every channel is taken.
func (p *ChannelPool) Acquire() (uint8, bool) {
	for i, taken := range p.occupied {
		if !taken {
			p.occupied[i] = true
			p.inUse++
			return p.first + uint8(i), true
		}
	}
	return 0, false
}

// Release returns ch to the pool. Releasing a free or out-of-range
// channel is a no-op.
func (p *ChannelPool) Release(ch uint8) {
	i, ok := p.index(ch)
	if !ok || !p.occupied[i] {
		return
	}
	p.occupied[i] = false
	p.inUse--
}

// Occupied reports whether ch is currently held.
func (p *ChannelPool) Occupied(ch uint8) bool {
	i, ok := p.index(ch)
	return ok && p.occupied[i]
}

// InUse returns the number of held channels.
func (p *ChannelPool) InUse() int { return p.inUse }

// Capacity returns the total number of channels in the pool.
func (p *ChannelPool) Capacity() int { return len(p.occupied) }

// Reset frees every channel.
func (p *ChannelPool) Reset() {
	for i := range p.occupied {
		p.occupied[i] = false
	}
	p.inUse = 0
}

func (p *ChannelPool) index(ch uint8) (int, bool) {
	if ch < p.first {
		return 0, false
	}
	i := int(ch - p.first)
	return i, i < len(p.occupied)
}
