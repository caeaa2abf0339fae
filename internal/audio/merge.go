package audio

import (
	"errors"
	"sort"
)

// ErrEmptyInput is returned by Merge when no usable clip remains.
var ErrEmptyInput = errors.New("no successful audio clips to merge")

// Clip is one independently produced WAV, tagged with its position in the
// narration (chunk index or scene number).
type Clip struct {
	Index int
	WAV   []byte
	Err   error
}

// Merge joins clips into a single DefaultFormat WAV. Failed and missing clips
// are dropped, the rest are ordered by Index, and clips too short to carry a
// header are skipped. Headers are discarded and regenerated, so
// Merge of Wrap(a) and Wrap(b) equals Wrap(a ++ b).
func Merge(clips []Clip) ([]byte, error) {
	ok := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if c.Err != nil || c.WAV == nil {
			continue
		}
		ok = append(ok, c)
	}
	if len(ok) == 0 {
		return nil, ErrEmptyInput
	}

	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Index < ok[j].Index })

	var size int
	for _, c := range ok {
		if len(c.WAV) >= HeaderSize {
			size += len(c.WAV) - HeaderSize
		}
	}

	pcm := make([]byte, 0, size)
	for _, c := range ok {
		payload, valid := PCM(c.WAV)
		if !valid {
			continue
		}
		pcm = append(pcm, payload...)
	}

	return Wrap(pcm), nil
}

// MergeWAVs merges WAV buffers in the order given.
func MergeWAVs(wavs ...[]byte) ([]byte, error) {
	clips := make([]Clip, len(wavs))
	for i, w := range wavs {
		clips[i] = Clip{Index: i, WAV: w}
	}
	return Merge(clips)
}
