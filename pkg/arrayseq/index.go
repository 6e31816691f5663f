package arrayseq

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// End can be passed as the stop of a Range to select through the last item.
const End = math.MaxInt

type indexKind int

const (
	kindPosition indexKind = iota
	kindRange
	kindList
	kindMask
)

// Index selects items of a sequence by position. It is one of a single
// position, a half-open range with a positive step, an ordered list of
// positions, or a boolean mask. Negative positions count from the end.
type Index struct {
	kind  indexKind
	pos   int
	start int
	stop  int
	step  int
	list  []int
	mask  []bool
}

// At selects the single item at position i.
func At(i int) Index {
	return Index{kind: kindPosition, pos: i}
}

// Range selects items in [start, stop).
func Range(start, stop int) Index {
	return Index{kind: kindRange, start: start, stop: stop, step: 1}
}

// RangeStep selects every step-th item in [start, stop). Step must be positive.
func RangeStep(start, stop, step int) Index {
	return Index{kind: kindRange, start: start, stop: stop, step: step}
}

// Positions selects the listed items, in the listed order. Repeats are allowed.
func Positions(idx ...int) Index {
	return Index{kind: kindList, list: append([]int(nil), idx...)}
}

// Mask selects the items whose mask entry is true. The mask length must equal
// the number of items being indexed.
func Mask(mask []bool) Index {
	return Index{kind: kindMask, mask: append([]bool(nil), mask...)}
}

// Resolve converts the index into explicit positions for a sequence of n items.
func (ix Index) Resolve(n int) ([]int, error) {
	switch ix.kind {
	case kindPosition:
		p, err := normalize(ix.pos, n)
		if err != nil {
			return nil, err
		}
		return []int{p}, nil

	case kindRange:
		start, stop, err := ix.bounds(n)
		if err != nil {
			return nil, err
		}
		out := make([]int, 0, max(0, (stop-start+ix.step-1)/ix.step))
		for i := start; i < stop; i += ix.step {
			out = append(out, i)
		}
		return out, nil

	case kindList:
		out := make([]int, len(ix.list))
		for i, p := range ix.list {
			q, err := normalize(p, n)
			if err != nil {
				return nil, err
			}
			out[i] = q
		}
		return out, nil

	case kindMask:
		if len(ix.mask) != n {
			return nil, fmt.Errorf("%w: mask of length %d for %d items", ErrShape, len(ix.mask), n)
		}
		out := make([]int, 0, n)
		for i, keep := range ix.mask {
			if keep {
				out = append(out, i)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown index kind %d", ix.kind)
}

// contiguous returns the bounds of the selection when it is a single run of
// consecutive items, which lets callers return views instead of copies.
func (ix Index) contiguous(n int) (start, stop int, ok bool) {
	switch ix.kind {
	case kindPosition:
		p, err := normalize(ix.pos, n)
		if err != nil {
			return 0, 0, false
		}
		return p, p + 1, true
	case kindRange:
		if ix.step != 1 {
			return 0, 0, false
		}
		start, stop, err := ix.bounds(n)
		if err != nil {
			return 0, 0, false
		}
		return start, stop, true
	}
	return 0, 0, false
}

// bounds clamps a range to [0, n] the way slicing does.
func (ix Index) bounds(n int) (int, int, error) {
	if ix.step <= 0 {
		return 0, 0, fmt.Errorf("%w: range step must be positive, got %d", ErrShape, ix.step)
	}
	clamp := func(v int) int {
		if v < 0 {
			v += n
		}
		return min(max(v, 0), n)
	}
	start, stop := clamp(ix.start), clamp(ix.stop)
	if stop < start {
		stop = start
	}
	return start, stop, nil
}

// String renders the index. Dictionaries use it as the fallback key when an
// index cannot be applied to their values.
func (ix Index) String() string {
	switch ix.kind {
	case kindPosition:
		return strconv.Itoa(ix.pos)
	case kindRange:
		stop := ""
		if ix.stop != End {
			stop = strconv.Itoa(ix.stop)
		}
		if ix.step == 1 {
			return fmt.Sprintf("%d:%s", ix.start, stop)
		}
		return fmt.Sprintf("%d:%s:%d", ix.start, stop, ix.step)
	case kindList:
		parts := make([]string, len(ix.list))
		for i, p := range ix.list {
			parts[i] = strconv.Itoa(p)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case kindMask:
		var b strings.Builder
		b.WriteByte('[')
		for i, m := range ix.mask {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatBool(m))
		}
		b.WriteByte(']')
		return b.String()
	}
	return "?"
}

func normalize(p, n int) (int, error) {
	q := p
	if q < 0 {
		q += n
	}
	if q < 0 || q >= n {
		return 0, fmt.Errorf("%w: index %d for %d items", ErrOutOfRange, p, n)
	}
	return q, nil
}
