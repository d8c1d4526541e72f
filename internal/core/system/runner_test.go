package system

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase            { return r.phase }
func (r recorder) Update(dt time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"flush", PhaseOutput, &log})
	r.Register(recorder{"keepalive", PhaseUpdate, &log})
	r.Register(recorder{"linkless", PhaseUpdate, &log})
	r.Register(recorder{"events", PhaseEvents, &log})

	r.Tick(50 * time.Millisecond)
	testutil.AssertEqual(t, "count", len(log), 4)
	want := []string{"events", "keepalive", "linkless", "flush"}
	for i := range want {
		testutil.AssertEqual(t, "order", log[i], want[i])
	}

	log = log[:0]
	r.TickPhase(PhaseOutput, 0)
	testutil.AssertEqual(t, "phase only", len(log), 1)
	testutil.AssertEqual(t, "flushed", log[0], "flush")
}
