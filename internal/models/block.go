package models

import (
	"errors"
	"fmt"
	"time"
)

type BlockKind string

const (
	BlockSingle BlockKind = "single"
	BlockSuper  BlockKind = "super"
)

var ErrInvalidBlock = errors.New("invalid block")

// TimeBlock is one bookable range of a queue's day, e.g. 09:00-09:30.
type TimeBlock struct {
	Number   int    `json:"number"`
	HourFrom string `json:"hourFrom"`
	HourTo   string `json:"hourTo"`
}

func (tb TimeBlock) validate() error {
	if tb.Number <= 0 {
		return fmt.Errorf("%w: block number must be positive", ErrInvalidBlock)
	}
	from, err := time.Parse("15:04", tb.HourFrom)
	if err != nil {
		return fmt.Errorf("%w: hourFrom %q", ErrInvalidBlock, tb.HourFrom)
	}
	to, err := time.Parse("15:04", tb.HourTo)
	if err != nil {
		return fmt.Errorf("%w: hourTo %q", ErrInvalidBlock, tb.HourTo)
	}
	if !to.After(from) {
		return fmt.Errorf("%w: %s-%s is empty", ErrInvalidBlock, tb.HourFrom, tb.HourTo)
	}
	return nil
}

// Block is what a booking occupies inside a queue's day. A single block holds
// exactly one range; a super block spans several sub-blocks booked together.
type Block struct {
	Kind   BlockKind   `json:"kind"`
	Blocks []TimeBlock `json:"blocks"`
}

func NewSingleBlock(tb TimeBlock) *Block {
	return &Block{Kind: BlockSingle, Blocks: []TimeBlock{tb}}
}

func NewSuperBlock(blocks ...TimeBlock) *Block {
	return &Block{Kind: BlockSuper, Blocks: append([]TimeBlock(nil), blocks...)}
}

func (b *Block) Validate() error {
	if b == nil {
		return nil
	}
	switch b.Kind {
	case BlockSingle:
		if len(b.Blocks) != 1 {
			return fmt.Errorf("%w: single block must hold one range, got %d", ErrInvalidBlock, len(b.Blocks))
		}
	case BlockSuper:
		if len(b.Blocks) == 0 {
			return fmt.Errorf("%w: super block has no sub-blocks", ErrInvalidBlock)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidBlock, b.Kind)
	}
	seen := make(map[string]struct{}, len(b.Blocks))
	for _, tb := range b.Blocks {
		if err := tb.validate(); err != nil {
			return err
		}
		if _, dup := seen[tb.HourFrom]; dup {
			return fmt.Errorf("%w: hour %s repeated", ErrInvalidBlock, tb.HourFrom)
		}
		seen[tb.HourFrom] = struct{}{}
	}
	return nil
}

// Hours flattens the block into the list of hourFrom values it claims.
func (b *Block) Hours() []string {
	if b == nil {
		return nil
	}
	hours := make([]string, 0, len(b.Blocks))
	for _, tb := range b.Blocks {
		hours = append(hours, tb.HourFrom)
	}
	return hours
}

// Numbers returns the distinct block numbers in order of appearance.
func (b *Block) Numbers() []int {
	if b == nil {
		return nil
	}
	seen := make(map[int]struct{}, len(b.Blocks))
	var numbers []int
	for _, tb := range b.Blocks {
		if _, ok := seen[tb.Number]; ok {
			continue
		}
		seen[tb.Number] = struct{}{}
		numbers = append(numbers, tb.Number)
	}
	return numbers
}

func (b *Block) First() (TimeBlock, bool) {
	if b == nil || len(b.Blocks) == 0 {
		return TimeBlock{}, false
	}
	return b.Blocks[0], true
}

// Sub returns the single block covering only the given sub-range.
func (b *Block) Sub(i int) *Block {
	return NewSingleBlock(b.Blocks[i])
}

func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	return &Block{Kind: b.Kind, Blocks: append([]TimeBlock(nil), b.Blocks...)}
}
