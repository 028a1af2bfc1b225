// Package sequence describes and plays controller init scripts: ordered
// command transactions interleaved with blocking delays.
package sequence

import (
	"errors"
	"fmt"
	"time"
)

// Step is either a command transaction or a delay. A command's first byte
// selects the controller register, the rest are its parameters.
type Step struct {
	Cmd    byte
	Params []byte
	Delay  time.Duration
	delay  bool
}

// Command returns a command step.
func Command(cmd byte, params ...byte) Step {
	return Step{Cmd: cmd, Params: params}
}

func commandOf(b []byte) Step {
	s := Step{Cmd: b[0]}
	if len(b) > 1 {
		s.Params = b[1:]
	}
	return s
}

// Sleep returns a delay step.
func Sleep(d time.Duration) Step {
	return Step{Delay: d, delay: true}
}

// IsDelay reports whether s is a delay.
func (s Step) IsDelay() bool { return s.delay }

func (s Step) String() string {
	if s.delay {
		return fmt.Sprintf("delay(%s)", s.Delay)
	}
	return fmt.Sprintf("cmd(0x%02X % X)", s.Cmd, s.Params)
}

// Sequence is an immutable init script.
type Sequence struct {
	steps []Step
}

// New copies steps into a Sequence.
func New(steps ...Step) Sequence {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Params = append([]byte(nil), s.Params...)
		out[i] = s
	}
	return Sequence{steps: out}
}

// Len returns the number of steps.
func (q Sequence) Len() int { return len(q.steps) }

// Cursor returns a one-shot iterator over the steps.
func (q Sequence) Cursor() *Cursor {
	return &Cursor{steps: q.steps}
}

// Cursor walks a Sequence once. After the last step, or after Stop, Next
// keeps returning false.
type Cursor struct {
	steps []Step
	pos   int
	done  bool
}

// Next returns the next step. The returned Params must not be modified.
func (c *Cursor) Next() (Step, bool) {
	if c.done || c.pos >= len(c.steps) {
		c.done = true
		return Step{}, false
	}
	s := c.steps[c.pos]
	c.pos++
	return s, true
}

// Stop ends the cursor early.
func (c *Cursor) Stop() { c.done = true }

// Commander issues one command transaction.
type Commander interface {
	WriteReg(cmd byte, params ...byte) error
}

// Sleeper blocks the caller for d.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// Wall sleeps on the real clock.
var Wall Sleeper = SleeperFunc(time.Sleep)

// Run plays q. The first error from c aborts the remaining steps and is
// returned as is.
func Run(q Sequence, c Commander, s Sleeper) error {
	cur := q.Cursor()
	defer cur.Stop()
	for {
		step, ok := cur.Next()
		if !ok {
			return nil
		}
		if step.IsDelay() {
			s.Sleep(step.Delay)
			continue
		}
		if err := c.WriteReg(step.Cmd, step.Params...); err != nil {
			return err
		}
	}
}

// Markers of the fbtft int16 init sequence encoding.
const (
	markCommand = -1
	markDelay   = -2
	markEnd     = -3
)

var ErrMalformed = errors.New("sequence: malformed init sequence")

// Parse decodes the fbtft encoding: -1 starts a command followed by its
// register and parameter bytes, -2 is followed by a delay in milliseconds
// and -3 ends the sequence.
func Parse(raw []int16) (Sequence, error) {
	var steps []Step
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case markEnd:
			return Sequence{steps: steps}, nil
		case markDelay:
			if i+1 >= len(raw) || raw[i+1] < 0 {
				return Sequence{}, fmt.Errorf("%w: delay without duration at %d", ErrMalformed, i)
			}
			steps = append(steps, Sleep(time.Duration(raw[i+1])*time.Millisecond))
			i += 2
		case markCommand:
			i++
			start := i
			for i < len(raw) && raw[i] >= 0 {
				if raw[i] > 0xFF {
					return Sequence{}, fmt.Errorf("%w: value 0x%X at %d is not a byte", ErrMalformed, raw[i], i)
				}
				i++
			}
			if i == start {
				return Sequence{}, fmt.Errorf("%w: empty command at %d", ErrMalformed, start-1)
			}
			b := make([]byte, i-start)
			for j := range b {
				b[j] = byte(raw[start+j])
			}
			steps = append(steps, commandOf(b))
		default:
			return Sequence{}, fmt.Errorf("%w: unexpected value %d at %d", ErrMalformed, raw[i], i)
		}
	}
	return Sequence{}, fmt.Errorf("%w: missing end marker", ErrMalformed)
}
