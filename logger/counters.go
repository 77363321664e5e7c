package logger

import (
	"sync"
	"sync/atomic"
)

// Per-component warn/error counters, surfaced on the status endpoint.

type componentStat struct {
	warns  int64
	errors int64
}

var counters sync.Map // map[string]*componentStat

func recordWarn(component string) {
	v, _ := counters.LoadOrStore(component, &componentStat{})
	atomic.AddInt64(&v.(*componentStat).warns, 1)
}

func recordError(component string) {
	v, _ := counters.LoadOrStore(component, &componentStat{})
	atomic.AddInt64(&v.(*componentStat).errors, 1)
}

// Counts holds the warn/error totals of one component.
type Counts struct {
	Warns  int64 `json:"warns"`
	Errors int64 `json:"errors"`
}

// Counters returns a point-in-time copy of all component counters.
func Counters() map[string]Counts {
	out := make(map[string]Counts)
	counters.Range(func(k, v interface{}) bool {
		s := v.(*componentStat)
		out[k.(string)] = Counts{
			Warns:  atomic.LoadInt64(&s.warns),
			Errors: atomic.LoadInt64(&s.errors),
		}
		return true
	})
	return out
}
