package tts

// Sequencer releases results in Index order as soon as every earlier index
// has settled. It expects indices 0..n-1 and is not safe for concurrent use;
// the callbacks of RunSegments are already serialized.
type Sequencer struct {
	next    int
	pending map[int]ChunkResult
	emit    func(ChunkResult)
}

// NewSequencer returns a Sequencer that forwards ordered results to emit.
func NewSequencer(emit func(ChunkResult)) *Sequencer {
	return &Sequencer{pending: make(map[int]ChunkResult), emit: emit}
}

// Add records r and emits every contiguous result now available.
func (s *Sequencer) Add(r ChunkResult) {
	s.pending[r.Index] = r
	for {
		res, ok := s.pending[s.next]
		if !ok {
			return
		}
		delete(s.pending, s.next)
		s.next++
		s.emit(res)
	}
}

// Pending returns the number of results held back by a gap.
func (s *Sequencer) Pending() int {
	return len(s.pending)
}
