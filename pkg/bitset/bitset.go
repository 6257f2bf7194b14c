// Package bitset implements a fixed-width bit set. The width is chosen at
// construction and the backing words are allocated once.
package bitset

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
)

const (
	container = "bitset.Bitset"
	wordBits  = 64
)

// ErrInvalidDigit is returned by Parse for characters other than the two digits.
var ErrInvalidDigit = errors.New("invalid bitset digit")

// Bitset is a sequence of Len() bits. Position 0 is the least significant
// bit; String prints the most significant bit first.
//
// Bitset is not safe for concurrent use.
type Bitset struct {
	words  []uint64
	width  int
	policy check.Policy
}

// Option configures a Bitset.
type Option func(*Bitset)

// WithPolicy sets the checking policy for out-of-range positions.
func WithPolicy(policy check.Policy) Option {
	return func(b *Bitset) {
		if policy != nil {
			b.policy = policy
		}
	}
}

// New creates a bitset of width zero bits.
func New(width int, opts ...Option) *Bitset {
	if width < 0 {
		panic(fmt.Sprintf("bitset: negative width %d", width))
	}

	b := &Bitset{words: make([]uint64, (width+wordBits-1)/wordBits), width: width, policy: check.Default()}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// FromUint64 creates a bitset of the given width holding the low width bits
// of value.
func FromUint64(width int, value uint64, opts ...Option) *Bitset {
	b := New(width, opts...)
	if len(b.words) > 0 {
		b.words[0] = value
		b.trim()
	}

	return b
}

// Parse reads a string of zero and one digits, most significant first.
func Parse(text string, zero, one rune, opts ...Option) (*Bitset, error) {
	digits := []rune(text)
	b := New(len(digits), opts...)

	for idx, digit := range digits {
		pos := len(digits) - 1 - idx

		switch digit {
		case one:
			b.words[pos/wordBits] |= 1 << (pos % wordBits)
		case zero:
		default:
			return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidDigit, digit, idx)
		}
	}

	return b, nil
}

// Len returns the width in bits.
func (b *Bitset) Len() int { return b.width }

// Test reports whether bit pos is set.
func (b *Bitset) Test(pos int) (bool, error) {
	if err := b.checkPos(pos); err != nil {
		return false, err
	}

	return b.words[pos/wordBits]&(1<<(pos%wordBits)) != 0, nil
}

// Set sets bit pos.
func (b *Bitset) Set(pos int) error {
	if err := b.checkPos(pos); err != nil {
		return err
	}

	b.words[pos/wordBits] |= 1 << (pos % wordBits)

	return nil
}

// SetTo sets bit pos to value.
func (b *Bitset) SetTo(pos int, value bool) error {
	if value {
		return b.Set(pos)
	}

	return b.Reset(pos)
}

// Reset clears bit pos.
func (b *Bitset) Reset(pos int) error {
	if err := b.checkPos(pos); err != nil {
		return err
	}

	b.words[pos/wordBits] &^= 1 << (pos % wordBits)

	return nil
}

// Flip toggles bit pos.
func (b *Bitset) Flip(pos int) error {
	if err := b.checkPos(pos); err != nil {
		return err
	}

	b.words[pos/wordBits] ^= 1 << (pos % wordBits)

	return nil
}

// SetAll sets every bit.
func (b *Bitset) SetAll() {
	for idx := range b.words {
		b.words[idx] = ^uint64(0)
	}

	b.trim()
}

// ResetAll clears every bit.
func (b *Bitset) ResetAll() {
	clear(b.words)
}

// FlipAll toggles every bit.
func (b *Bitset) FlipAll() {
	for idx := range b.words {
		b.words[idx] = ^b.words[idx]
	}

	b.trim()
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	total := 0
	for _, word := range b.words {
		total += bits.OnesCount64(word)
	}

	return total
}

// All reports whether every bit is set. It is true for a zero-width set.
func (b *Bitset) All() bool { return b.Count() == b.width }

// Any reports whether at least one bit is set.
func (b *Bitset) Any() bool { return b.Count() > 0 }

// None reports whether no bit is set.
func (b *Bitset) None() bool { return !b.Any() }

// Equal reports whether both sets have the same width and bits.
func (b *Bitset) Equal(other *Bitset) bool {
	if b.width != other.width {
		return false
	}

	for idx, word := range b.words {
		if other.words[idx] != word {
			return false
		}
	}

	return true
}

// And keeps only the bits also set in other. Widths must match.
func (b *Bitset) And(other *Bitset) {
	b.mustMatch(other)

	for idx := range b.words {
		b.words[idx] &= other.words[idx]
	}
}

// Or adds the bits set in other. Widths must match.
func (b *Bitset) Or(other *Bitset) {
	b.mustMatch(other)

	for idx := range b.words {
		b.words[idx] |= other.words[idx]
	}
}

// Xor toggles the bits set in other. Widths must match.
func (b *Bitset) Xor(other *Bitset) {
	b.mustMatch(other)

	for idx := range b.words {
		b.words[idx] ^= other.words[idx]
	}
}

// ShiftLeft moves every bit n positions towards the most significant end.
// Bits shifted past the width are lost.
func (b *Bitset) ShiftLeft(n int) {
	if n <= 0 {
		return
	}

	if n >= b.width {
		b.ResetAll()

		return
	}

	wordShift, bitShift := n/wordBits, uint(n%wordBits)

	for idx := len(b.words) - 1; idx >= 0; idx-- {
		src := idx - wordShift

		var word uint64

		if src >= 0 {
			word = b.words[src] << bitShift
			if bitShift != 0 && src > 0 {
				word |= b.words[src-1] >> (wordBits - bitShift)
			}
		}

		b.words[idx] = word
	}

	b.trim()
}

// ShiftRight moves every bit n positions towards position 0.
func (b *Bitset) ShiftRight(n int) {
	if n <= 0 {
		return
	}

	if n >= b.width {
		b.ResetAll()

		return
	}

	wordShift, bitShift := n/wordBits, uint(n%wordBits)
	last := len(b.words) - 1

	for idx := range b.words {
		src := idx + wordShift

		var word uint64

		if src <= last {
			word = b.words[src] >> bitShift
			if bitShift != 0 && src < last {
				word |= b.words[src+1] << (wordBits - bitShift)
			}
		}

		b.words[idx] = word
	}
}

// ToUint64 returns the bits as an integer. It is a violation when a bit at
// position 64 or above is set.
func (b *Bitset) ToUint64() (uint64, error) {
	if high := b.highestSet(); high >= wordBits {
		return 0, b.policy.Handle(check.Range(container, b.width, high))
	}

	if len(b.words) == 0 {
		return 0, nil
	}

	return b.words[0], nil
}

// ToUint32 returns the bits as a uint32. It is a violation when a bit at
// position 32 or above is set.
func (b *Bitset) ToUint32() (uint32, error) {
	const uint32Bits = 32

	if high := b.highestSet(); high >= uint32Bits {
		return 0, b.policy.Handle(check.Range(container, b.width, high))
	}

	if len(b.words) == 0 {
		return 0, nil
	}

	return uint32(b.words[0]), nil
}

// Format renders the bits most significant first using the given digits.
func (b *Bitset) Format(zero, one rune) string {
	var sb strings.Builder

	sb.Grow(b.width)

	for pos := b.width - 1; pos >= 0; pos-- {
		if b.words[pos/wordBits]&(1<<(pos%wordBits)) != 0 {
			sb.WriteRune(one)
		} else {
			sb.WriteRune(zero)
		}
	}

	return sb.String()
}

// String renders the bits with '0' and '1'.
func (b *Bitset) String() string {
	return b.Format('0', '1')
}

// MarshalText implements encoding.TextMarshaler.
func (b *Bitset) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The width becomes the
// length of the text.
func (b *Bitset) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text), '0', '1')
	if err != nil {
		return err
	}

	b.words, b.width = parsed.words, parsed.width
	if b.policy == nil {
		b.policy = check.Default()
	}

	return nil
}

func (b *Bitset) checkPos(pos int) error {
	if pos < 0 || pos >= b.width {
		return b.policy.Handle(check.Range(container, b.width, pos))
	}

	return nil
}

func (b *Bitset) mustMatch(other *Bitset) {
	if b.width != other.width {
		panic(fmt.Sprintf("bitset: width %d does not match %d", other.width, b.width))
	}
}

// highestSet returns the position of the most significant set bit, or -1.
func (b *Bitset) highestSet() int {
	for idx := len(b.words) - 1; idx >= 0; idx-- {
		if b.words[idx] != 0 {
			return idx*wordBits + wordBits - 1 - bits.LeadingZeros64(b.words[idx])
		}
	}

	return -1
}

// trim clears the bits above the width in the last word.
func (b *Bitset) trim() {
	if extra := b.width % wordBits; extra != 0 {
		b.words[len(b.words)-1] &= (1 << extra) - 1
	}
}
