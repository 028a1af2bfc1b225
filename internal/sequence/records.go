package sequence

import (
	"fmt"
	"time"
)

// Record is the config file form of a step. Exactly one of Cmd (register
// followed by parameters) and DelayMS is set.
type Record struct {
	Cmd     []int `yaml:"cmd,omitempty" json:"cmd,omitempty"`
	DelayMS int   `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
}

// FromRecords builds a Sequence from config records.
func FromRecords(recs []Record) (Sequence, error) {
	steps := make([]Step, 0, len(recs))
	for i, r := range recs {
		switch {
		case len(r.Cmd) > 0 && r.DelayMS != 0:
			return Sequence{}, fmt.Errorf("%w: record %d has both cmd and delay_ms", ErrMalformed, i)
		case len(r.Cmd) > 0:
			b := make([]byte, len(r.Cmd))
			for j, v := range r.Cmd {
				if v < 0 || v > 0xFF {
					return Sequence{}, fmt.Errorf("%w: record %d value %d is not a byte", ErrMalformed, i, v)
				}
				b[j] = byte(v)
			}
			steps = append(steps, commandOf(b))
		case r.DelayMS < 0:
			return Sequence{}, fmt.Errorf("%w: record %d has negative delay_ms %d", ErrMalformed, i, r.DelayMS)
		case r.DelayMS > 0:
			steps = append(steps, Sleep(time.Duration(r.DelayMS)*time.Millisecond))
		default:
			return Sequence{}, fmt.Errorf("%w: record %d is empty", ErrMalformed, i)
		}
	}
	return Sequence{steps: steps}, nil
}
