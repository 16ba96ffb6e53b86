// Package tickdirectory maintains the sparse index of active ticks for one
// pool: which spacing-aligned tick indices currently have a tick record.
//
// Aligned ticks are shifted to a zero-based offset and grouped into
// fixed-size bit vectors, so finding the next active tick in either
// direction is a word scan within each allocated group; group indices with
// no allocated group are stepped over one by one up to the tick bound.
package tickdirectory

import (
	"errors"

	"github.com/defistate/clmm-engine-go/bitset"
	"github.com/defistate/clmm-engine-go/calculator/tickmath"
)

// GroupSize is the number of tick offsets indexed by one bit vector.
const GroupSize = 1000

var ErrUnalignedTick = errors.New("tick is not aligned to the pool tick spacing")

// Directory is the two-level sparse set of active ticks. Groups are
// allocated on first mark and reclaimed when their last bit clears, keeping
// memory proportional to the populated price range.
type Directory struct {
	spacing    uint32
	minAligned int32
	maxOffset  uint64
	groups     map[uint64]bitset.BitSet
}

func New(tickSpacing uint32) *Directory {
	span := int32(tickSpacing)
	minAligned := -(tickmath.MaxTick / span) * span
	maxAligned := (tickmath.MaxTick / span) * span
	return &Directory{
		spacing:    tickSpacing,
		minAligned: minAligned,
		maxOffset:  uint64((maxAligned - minAligned) / span),
		groups:     make(map[uint64]bitset.BitSet),
	}
}

func (d *Directory) offset(tick int32) (uint64, error) {
	if !tickmath.IsValidTick(tick, d.spacing) {
		return 0, ErrUnalignedTick
	}
	return uint64((tick - d.minAligned) / int32(d.spacing)), nil
}

func (d *Directory) tickAt(offset uint64) int32 {
	return d.minAligned + int32(offset)*int32(d.spacing)
}

// Mark records tick as active.
func (d *Directory) Mark(tick int32) error {
	off, err := d.offset(tick)
	if err != nil {
		return err
	}
	group, ok := d.groups[off/GroupSize]
	if !ok {
		group = bitset.NewBitSet(GroupSize)
		d.groups[off/GroupSize] = group
	}
	group.Set(off % GroupSize)
	return nil
}

// Unmark clears tick and reclaims the group once it is empty.
func (d *Directory) Unmark(tick int32) error {
	off, err := d.offset(tick)
	if err != nil {
		return err
	}
	group, ok := d.groups[off/GroupSize]
	if !ok {
		return nil
	}
	group.Unset(off % GroupSize)
	if group.None() {
		delete(d.groups, off/GroupSize)
	}
	return nil
}

// IsMarked reports whether tick is active.
func (d *Directory) IsMarked(tick int32) bool {
	off, err := d.offset(tick)
	if err != nil {
		return false
	}
	group, ok := d.groups[off/GroupSize]
	return ok && group.IsSet(off%GroupSize)
}

// NextActive returns the nearest active tick from the given tick in the
// swap direction. Moving a-to-b (price falling) the scan starts at the
// aligned tick at or below from and walks down; moving b-to-a it starts
// strictly above from and walks up.
func (d *Directory) NextActive(from int32, aToB bool) (int32, bool) {
	if aToB {
		start := alignDown(from, int32(d.spacing))
		if start < d.minAligned {
			return 0, false
		}
		off := uint64((start - d.minAligned) / int32(d.spacing))
		return d.scanBackward(off)
	}

	start := alignDown(from, int32(d.spacing)) + int32(d.spacing)
	off := uint64((start - d.minAligned) / int32(d.spacing))
	if off > d.maxOffset {
		return 0, false
	}
	return d.scanForward(off)
}

func (d *Directory) scanForward(off uint64) (int32, bool) {
	for g := off / GroupSize; ; g++ {
		group, ok := d.groups[g]
		if ok {
			first := uint64(0)
			if g == off/GroupSize {
				first = off % GroupSize
			}
			if bit, found := group.NextSetForward(first); found {
				return d.tickAt(g*GroupSize + bit), true
			}
		}
		if (g+1)*GroupSize > d.maxOffset {
			return 0, false
		}
	}
}

func (d *Directory) scanBackward(off uint64) (int32, bool) {
	g := off / GroupSize
	for {
		group, ok := d.groups[g]
		if ok {
			last := uint64(GroupSize - 1)
			if g == off/GroupSize {
				last = off % GroupSize
			}
			if bit, found := group.NextSetBackward(last); found {
				return d.tickAt(g*GroupSize + bit), true
			}
		}
		if g == 0 {
			return 0, false
		}
		g--
	}
}

func alignDown(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}
