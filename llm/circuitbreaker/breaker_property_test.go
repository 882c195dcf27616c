package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vivekverma239/superfast-ai/types"
)

// step 是一次模拟调用：先推进时钟，再以给定结果执行
type step struct {
	advanceSec int
	succeed    bool
}

// model 是熔断器状态机的参考实现
type model struct {
	state    State
	failures int
	next     time.Time
}

func (m *model) apply(now time.Time, s step, threshold int, reset time.Duration) (invoked bool) {
	if m.state == StateOpen {
		if now.Before(m.next) {
			return false
		}
		m.state = StateHalfOpen
	}
	if s.succeed {
		m.failures = 0
		m.state = StateClosed
		return true
	}
	m.failures++
	if m.state == StateHalfOpen || m.failures >= threshold {
		m.state = StateOpen
		m.next = now.Add(reset)
	}
	return true
}

// Property: 任意调用序列下，熔断器与参考模型的状态、计数和是否调用保持一致
func TestProperty_BreakerMatchesModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genStep := gopter.CombineGens(gen.IntRange(0, 20), gen.Bool()).Map(func(vals []interface{}) step {
		return step{advanceSec: vals[0].(int), succeed: vals[1].(bool)}
	})

	properties.Property("state machine follows CLOSED/OPEN/HALF_OPEN rules", prop.ForAll(
		func(threshold int, steps []step) bool {
			reset := 10 * time.Second
			b, clock := newTestBreaker(Config{FailureThreshold: threshold, ResetTimeout: reset})
			m := &model{state: StateClosed}

			for _, s := range steps {
				clock.Advance(time.Duration(s.advanceSec) * time.Second)
				wantInvoked := m.apply(clock.Now(), s, threshold, reset)

				invoked := false
				err := b.Execute(context.Background(), func(context.Context) error {
					invoked = true
					if s.succeed {
						return nil
					}
					return errBoom
				})

				if invoked != wantInvoked {
					return false
				}
				if !invoked && !types.IsErrorCode(err, types.ErrCircuitBreakerOpen) {
					return false
				}
				snap := b.Snapshot()
				if snap.State != m.state || snap.FailureCount != m.failures {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.SliceOf(genStep),
	))

	properties.TestingRun(t)
}
