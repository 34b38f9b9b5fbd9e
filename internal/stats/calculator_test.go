package stats

import (
	"math"
	"testing"
	"time"
)

func TestAveragePace(t *testing.T) {
	// 300 s over 1 km is a 5:00 pace
	p := AveragePace(300*time.Second, 1000)
	if p.Minutes != 5 || p.Seconds != 0 {
		t.Fatalf("unexpected pace: %+v", p)
	}

	// 500 s over 1.2 km floors to 416 s/km
	p = AveragePace(500*time.Second, 1200)
	if p.Minutes != 6 || p.Seconds != 56 {
		t.Fatalf("unexpected pace: %+v", p)
	}
}

func TestAveragePaceZeroDistance(t *testing.T) {
	p := AveragePace(300*time.Second, 0)
	if p.Minutes != 0 || p.Seconds != 0 {
		t.Fatalf("expected zero pace, got %+v", p)
	}
}

func TestSpeedKmh(t *testing.T) {
	s := SpeedKmh(30*time.Minute, 5000)
	if math.Abs(s-10) > 1e-9 {
		t.Fatalf("unexpected speed: %v", s)
	}
	if SpeedKmh(0, 1000) != 0 {
		t.Fatalf("expected zero speed at zero elapsed")
	}
}

func TestInstantPaceNeedsTwoSnapshots(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	now := time.Now()

	st := calc.Update(now, 0, 0, nil, nil)
	if st.InstantPace != (Pace{}) {
		t.Fatalf("single snapshot must report zero pace: %+v", st.InstantPace)
	}
}

func TestInstantPaceFromWindow(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	start := time.Now()

	// 3 m/s over 8 seconds: 24 m covered, pace 333 s/km
	var st RunningStats
	for i := 0; i <= 8; i += 2 {
		now := start.Add(time.Duration(i) * time.Second)
		st = calc.Update(now, float64(i)*3, time.Duration(i)*time.Second, nil, nil)
	}
	secPerKm := st.InstantPace.Minutes*60 + st.InstantPace.Seconds
	if secPerKm != 333 {
		t.Fatalf("unexpected instant pace: %+v", st.InstantPace)
	}
}

func TestInstantPaceWindowPrunes(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	start := time.Now()

	calc.Update(start, 0, 0, nil, nil)
	// 30 s later every prior snapshot has left the 10 s window
	st := calc.Update(start.Add(30*time.Second), 100, 30*time.Second, nil, nil)
	if st.InstantPace != (Pace{}) {
		t.Fatalf("stale snapshots must not feed pace: %+v", st.InstantPace)
	}
}

func TestInstantPaceNoMovement(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	start := time.Now()

	calc.Update(start, 50, 10*time.Second, nil, nil)
	st := calc.Update(start.Add(5*time.Second), 50, 15*time.Second, nil, nil)
	if st.InstantPace != (Pace{}) {
		t.Fatalf("zero distance delta must report zero pace: %+v", st.InstantPace)
	}
}

func TestCaloriesSelectsExactlyOneFormula(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	elapsed := 5 * time.Minute

	met := calc.Calories(elapsed, nil)
	wantMet := 9.8 * 70 * elapsed.Hours()
	if math.Abs(met-wantMet) > 1e-9 {
		t.Fatalf("MET calories %v, want %v", met, wantMet)
	}

	hr := 140
	keytel := calc.Calories(elapsed, &hr)
	if keytel <= 0 {
		t.Fatalf("expected positive Keytel calories, got %v", keytel)
	}
	if math.Abs(keytel-met) < 1e-9 {
		t.Fatalf("formulas must not coincide: %v", keytel)
	}
	if keytel <= met {
		t.Fatalf("140 bpm on the default profile should burn more than MET: %v vs %v", keytel, met)
	}
}

func TestKeytelFlooredAtZero(t *testing.T) {
	if c := KeytelCalories(DefaultProfile(), 10*time.Minute, 40); c != 0 {
		t.Fatalf("low heart rate must floor at zero, got %v", c)
	}
}

func TestKeytelSexCoefficients(t *testing.T) {
	elapsed := 30 * time.Minute
	male := KeytelCalories(Profile{WeightKg: 70, Age: 30, Sex: SexMale}, elapsed, 150)
	female := KeytelCalories(Profile{WeightKg: 70, Age: 30, Sex: SexFemale}, elapsed, 150)
	if male == female {
		t.Fatalf("coefficients must differ by sex")
	}
}

func TestUpdatePropagatesAbsence(t *testing.T) {
	calc := NewCalculator(DefaultProfile())
	st := calc.Update(time.Now(), 100, time.Minute, nil, nil)
	if st.HeartRateBpm != nil || st.CadenceSpm != nil {
		t.Fatalf("absent sensors must stay absent: %+v", st)
	}
}
