package regime

import "RegimeLab/internal/domain/models"

// Segment is a maximal run of one regime id. End is exclusive.
type Segment struct {
	Start int
	End   int
	ID    int
}

// Len returns the number of observations in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Segments splits an id sequence into maximal runs, null runs included.
func Segments(ids []int) []Segment {
	var out []Segment
	for i := 0; i < len(ids); {
		j := i + 1
		for j < len(ids) && ids[j] == ids[i] {
			j++
		}
		out = append(out, Segment{Start: i, End: j, ID: ids[i]})
		i = j
	}
	return out
}

// Smooth applies the duration constraint to gated assignments. The input is
// the raw id sequence over the complete rows plus their positions in the full
// series; the output is a full-length sequence aligned with the series index.
//
// The pass order matters: fill the gaps, invalidate runs shorter than minLen,
// re-fill the holes from the left only, place everything back on the full
// index, then close both edges. A series where no run reaches minLen comes
// back entirely unassigned.
func Smooth(raw []int, valid []int, total int, minLen int) []int {
	work := make([]int, len(raw))
	copy(work, raw)

	forwardFill(work)
	backwardFill(work)
	for _, seg := range Segments(work) {
		if seg.ID != models.NoRegime && seg.Len() < minLen {
			for i := seg.Start; i < seg.End; i++ {
				work[i] = models.NoRegime
			}
		}
	}
	forwardFill(work)

	full := Scatter(work, valid, total)
	forwardFill(full)
	backwardFill(full)
	return full
}

// Scatter places values at their full-index positions, nulls elsewhere.
func Scatter(vals []int, valid []int, total int) []int {
	full := make([]int, total)
	for i := range full {
		full[i] = models.NoRegime
	}
	for i, pos := range valid {
		full[pos] = vals[i]
	}
	return full
}

// Gather extracts the values at the valid positions from a full sequence.
func Gather(full []int, valid []int) []int {
	out := make([]int, len(valid))
	for i, pos := range valid {
		out[i] = full[pos]
	}
	return out
}

func forwardFill(ids []int) {
	last := models.NoRegime
	for i, v := range ids {
		if v == models.NoRegime {
			ids[i] = last
		} else {
			last = v
		}
	}
}

func backwardFill(ids []int) {
	next := models.NoRegime
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == models.NoRegime {
			ids[i] = next
		} else {
			next = ids[i]
		}
	}
}
