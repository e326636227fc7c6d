//go:build property

package watcher

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Run with: go test -tags property ./internal/watcher/

func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	ops := []Op{OpCreated, OpModified, OpRemoved, OpRenamed}

	properties.Property("a burst on one path delivers exactly the last event", prop.ForAll(
		func(burst int) bool {
			d := NewDebouncer(5 * time.Millisecond)
			defer d.Stop()

			var last Op
			for i := 0; i < burst; i++ {
				last = ops[i%len(ops)]
				d.Add(Event{Path: "/p/x", Op: last})
			}

			select {
			case event := <-d.Events():
				if event.Path != "/p/x" || event.Op != last {
					return false
				}
			case <-time.After(time.Second):
				return false
			}

			select {
			case <-d.Events():
				return false
			case <-time.After(20 * time.Millisecond):
				return true
			}
		},
		gen.IntRange(1, 15),
	))

	properties.Property("distinct paths each deliver once", prop.ForAll(
		func(paths int) bool {
			d := NewDebouncer(5 * time.Millisecond)
			defer d.Stop()

			for i := 0; i < paths; i++ {
				d.Add(Event{Path: "/p/" + strconv.Itoa(i), Op: OpModified})
			}

			seen := map[string]bool{}
			for n := 0; n < paths; n++ {
				select {
				case event := <-d.Events():
					if seen[event.Path] {
						return false
					}
					seen[event.Path] = true
				case <-time.After(time.Second):
					return false
				}
			}

			return len(seen) == paths
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
