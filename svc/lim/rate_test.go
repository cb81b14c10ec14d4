package lim

import (
	"net/http/httptest"
	"testing"
)

func TestGetRealIP(t *testing.T) {
	cases := []struct {
		name    string
		remote  string
		xff     string
		proxies []string
		want    string
	}{
		{"no proxies ignores header", "1.2.3.4:555", "9.9.9.9", nil, "1.2.3.4"},
		{"untrusted peer ignores header", "1.2.3.4:555", "9.9.9.9", []string{"10.0.0.0/8"}, "1.2.3.4"},
		{"trusted peer", "10.0.0.2:555", "9.9.9.9", []string{"10.0.0.0/8"}, "9.9.9.9"},
		{"rightmost untrusted wins", "10.0.0.2:555", "6.6.6.6, 9.9.9.9, 10.0.0.7", []string{"10.0.0.0/8"}, "9.9.9.9"},
		{"garbage skipped", "10.0.0.2:555", "9.9.9.9, nope", []string{"10.0.0.0/8"}, "9.9.9.9"},
		{"all trusted", "10.0.0.2:555", "10.0.0.3", []string{"10.0.0.0/8"}, "10.0.0.2"},
		{"exact ip proxy", "127.0.0.1:80", "8.8.8.8", []string{"127.0.0.1"}, "8.8.8.8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := GetRealIP(r, tc.proxies); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocalLimit(t *testing.T) {
	l := New(60, 3, nil, nil)
	defer l.Stop()

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "1.2.3.4:1000"
	for i := 0; i < 3; i++ {
		if res := l.CheckLimit(r, Read); !res.Allowed {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if res := l.CheckLimit(r, Read); res.Allowed || res.Remaining != 0 {
		t.Errorf("burst exhausted but request allowed: %+v", res)
	}

	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "5.6.7.8:1000"
	if res := l.CheckLimit(other, Read); !res.Allowed {
		t.Error("clients must not share buckets")
	}
}

func TestWriteBucketIsSmaller(t *testing.T) {
	l := New(40, 100, nil, nil)
	defer l.Stop()
	if got := l.limitFor(Write); got != 10 {
		t.Errorf("write limit: got %d, want 10", got)
	}
	if got := l.limitFor(Read); got != 40 {
		t.Errorf("read limit: got %d, want 40", got)
	}

	r := httptest.NewRequest("POST", "/paste", nil)
	r.RemoteAddr = "1.2.3.4:1000"
	allowed := 0
	for i := 0; i < 20; i++ {
		if l.CheckLimit(r, Write).Allowed {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("write burst: allowed %d, want 10", allowed)
	}
}

func TestAdaptiveModeHalvesLimits(t *testing.T) {
	l := New(40, 10, nil, nil)
	defer l.Stop()
	l.TriggerAdaptiveMode()
	if got := l.limitFor(Read); got != 20 {
		t.Errorf("adaptive read limit: got %d, want 20", got)
	}
	l2 := New(1, 1, nil, nil)
	defer l2.Stop()
	l2.TriggerAdaptiveMode()
	if got := l2.limitFor(Write); got != 1 {
		t.Errorf("limit must never drop below 1, got %d", got)
	}
}

func TestNewPanicsOnBadProxy(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New(10, 10, nil, []string{"not-an-ip"})
}

func TestAnomalyDetector(t *testing.T) {
	fired := 0
	d := NewAnomalyDetector(func() { fired++ })
	for i := 0; i < 20; i++ {
		d.RecordRequest()
	}
	d.AdvanceWindow()
	if fired != 0 {
		t.Fatal("fired without errors")
	}
	for i := 0; i < 5; i++ {
		d.RecordRequest()
		d.RecordError()
	}
	if rate, reqs := d.ErrorRate(); reqs != 25 || rate != 20 {
		t.Errorf("error rate: got %.1f%% of %d", rate, reqs)
	}
	d.AdvanceWindow()
	if fired != 1 {
		t.Errorf("expected one anomaly, got %d", fired)
	}
}
