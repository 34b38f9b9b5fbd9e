package sensor

import (
	"context"
	"testing"
	"time"
)

func newChain(watchUp, wearableUp, phoneUp bool) (*Resolver, *PushSource, *PushSource, *PushSource) {
	watch := NewPushSource(SourceWatch, watchUp)
	wearable := NewPushSource(SourceWearable, wearableUp)
	phone := NewPushSource(SourcePhone, phoneUp)
	r := NewResolver(context.Background(), watch, wearable, phone)
	return r, watch, wearable, phone
}

func TestResolverUsesHighestPriority(t *testing.T) {
	r, watch, _, _ := newChain(true, true, true)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })

	watch.Push(MetricHeartRate, Reading{Value: 142})
	if len(got) != 1 || got[0].Source != SourceWatch || got[0].Value != 142 {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestResolverSkipsUnavailableSources(t *testing.T) {
	r, watch, wearable, _ := newChain(false, true, true)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })

	// the watch is unreachable, its pushes must go nowhere
	watch.Push(MetricHeartRate, Reading{Value: 99})
	wearable.Push(MetricHeartRate, Reading{Value: 128})

	if len(got) != 1 || got[0].Source != SourceWearable {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestResolverFallsOneTierPerNoData(t *testing.T) {
	r, watch, wearable, phone := newChain(true, true, true)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })

	watch.Push(MetricHeartRate, Reading{NoData: true})
	if r.ActiveSource(MetricHeartRate) != SourceWearable {
		t.Fatalf("expected wearable active, got %s", r.ActiveSource(MetricHeartRate))
	}

	// a late value from the exhausted watch must be ignored
	watch.Push(MetricHeartRate, Reading{Value: 70})
	if len(got) != 0 {
		t.Fatalf("stale source leaked a value: %+v", got)
	}

	wearable.Push(MetricHeartRate, Reading{NoData: true})
	if r.ActiveSource(MetricHeartRate) != SourcePhone {
		t.Fatalf("expected phone active, got %s", r.ActiveSource(MetricHeartRate))
	}

	phone.Push(MetricHeartRate, Reading{Value: 115})
	if len(got) != 1 || got[0].Source != SourcePhone || got[0].Value != 115 {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestResolverExhaustionIsPermanent(t *testing.T) {
	r, watch, wearable, phone := newChain(true, true, true)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })

	watch.Push(MetricHeartRate, Reading{NoData: true})
	wearable.Push(MetricHeartRate, Reading{NoData: true})
	phone.Push(MetricHeartRate, Reading{NoData: true})

	if len(got) != 1 || got[0].Source != SourceNone {
		t.Fatalf("expected a single none result, got %+v", got)
	}
	if r.ActiveSource(MetricHeartRate) != SourceNone {
		t.Fatalf("expected none active")
	}

	// no tier is re-queried after exhaustion
	watch.Push(MetricHeartRate, Reading{Value: 80})
	if len(got) != 1 {
		t.Fatalf("exhausted resolver accepted a value: %+v", got)
	}

	// an explicit restart begins the chain again
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })
	watch.Push(MetricHeartRate, Reading{Value: 80})
	if len(got) != 2 || got[1].Source != SourceWatch {
		t.Fatalf("restart did not reattach the watch: %+v", got)
	}
}

func TestResolverMetricsFallBackIndependently(t *testing.T) {
	r, watch, wearable, _ := newChain(true, true, true)

	var hr, cad []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { hr = append(hr, res) })
	r.StartMonitoring(MetricCadence, func(res Result) { cad = append(cad, res) })

	watch.Push(MetricCadence, Reading{NoData: true})

	if r.ActiveSource(MetricHeartRate) != SourceWatch {
		t.Fatalf("cadence fallback moved the heart-rate source")
	}
	if r.ActiveSource(MetricCadence) != SourceWearable {
		t.Fatalf("expected cadence on wearable, got %s", r.ActiveSource(MetricCadence))
	}

	watch.Push(MetricHeartRate, Reading{Value: 150})
	wearable.Push(MetricCadence, Reading{Value: 172})
	if len(hr) != 1 || hr[0].Source != SourceWatch {
		t.Fatalf("unexpected heart-rate results: %+v", hr)
	}
	if len(cad) != 1 || cad[0].Source != SourceWearable {
		t.Fatalf("unexpected cadence results: %+v", cad)
	}
}

func TestStopMonitoringClearsActiveSource(t *testing.T) {
	r, watch, _, _ := newChain(true, true, true)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })
	r.StopMonitoring(MetricHeartRate)

	if r.ActiveSource(MetricHeartRate) != SourceNone {
		t.Fatalf("expected no active source after stop")
	}
	watch.Push(MetricHeartRate, Reading{Value: 90})
	if len(got) != 0 {
		t.Fatalf("stopped monitor received a value: %+v", got)
	}
}

func TestCaloriePriority(t *testing.T) {
	r, _, wearable, phone := newChain(true, true, true)

	if _, _, ok := r.Calories(1000, 5*time.Minute, 70, nil); ok {
		t.Fatalf("no device estimate expected")
	}

	phone.SetCalories(40)
	kcal, kind, ok := r.Calories(1000, 5*time.Minute, 70, nil)
	if !ok || kind != SourcePhone || kcal != 40 {
		t.Fatalf("unexpected estimate: %v %s %v", kcal, kind, ok)
	}

	wearable.SetCalories(55)
	kcal, kind, ok = r.Calories(1000, 5*time.Minute, 70, nil)
	if !ok || kind != SourceWearable || kcal != 55 {
		t.Fatalf("wearable must outrank phone: %v %s %v", kcal, kind, ok)
	}
}

func TestRefreshAvailability(t *testing.T) {
	watch := NewPushSource(SourceWatch, false)
	r := NewResolver(context.Background(), watch)

	var got []Result
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })
	if len(got) != 1 || got[0].Source != SourceNone {
		t.Fatalf("unreachable-only chain must report none: %+v", got)
	}

	watch.reachable = true
	r.RefreshAvailability(context.Background())
	r.StartMonitoring(MetricHeartRate, func(res Result) { got = append(got, res) })
	watch.Push(MetricHeartRate, Reading{Value: 61})
	if len(got) != 2 || got[1].Source != SourceWatch {
		t.Fatalf("refresh did not pick up the watch: %+v", got)
	}
}
