package ejrpc

// idGenerator hands out request ids in strictly increasing order. It is
// guarded by the stage's send mutex.
type idGenerator struct {
	next uint64
}

func (g *idGenerator) take() uint64 {
	id := g.next
	g.next++
	return id
}

// giveBack returns the id just taken, for a request that was never emitted.
func (g *idGenerator) giveBack(id uint64) {
	if g.next == id+1 {
		g.next = id
	}
}
