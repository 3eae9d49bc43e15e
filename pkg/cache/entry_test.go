package cache

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 5, 13, 9, 30, 0, 123456000, time.UTC)

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "postgrest", in: "2025-05-13T09:30:00.123456+00:00"},
		{name: "zulu", in: "2025-05-13T09:30:00.123456Z"},
		{name: "postgres text", in: "2025-05-13 09:30:00.123456+00"},
		{name: "offset", in: "2025-05-13T15:00:00.123456+05:30"},
		{name: "naive", in: "2025-05-13T09:30:00.123456"},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "yesterday-ish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTimestamp(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error = %v", tt.in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestRow_Entry(t *testing.T) {
	row := Row{
		Key:        "stock_TCS.NS",
		Value:      []byte(`{"price":1}`),
		CreatedAt:  "2025-05-13T09:30:00Z",
		TTLSeconds: 900,
	}

	entry, err := row.Entry()
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if entry.TTL != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", entry.TTL)
	}
	if string(entry.Value) != `{"price":1}` {
		t.Errorf("Value = %s, want %s", entry.Value, `{"price":1}`)
	}

	row.CreatedAt = "not-a-time"
	if _, err := row.Entry(); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Entry() error = %v, want ErrInvalidEntry", err)
	}
}

func TestEntry_IsExpired(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entryTTL time.Duration
		fallback time.Duration
		age      time.Duration
		want     bool
	}{
		{name: "fresh under global ttl", fallback: time.Hour, age: 59 * time.Minute, want: false},
		{name: "expired at global ttl boundary", fallback: time.Hour, age: time.Hour, want: true},
		{name: "per-entry ttl fresh", entryTTL: 900 * time.Second, fallback: time.Hour, age: 899 * time.Second, want: false},
		{name: "per-entry ttl boundary", entryTTL: 900 * time.Second, fallback: time.Hour, age: 900 * time.Second, want: true},
		{name: "per-entry ttl longer than global", entryTTL: 24 * time.Hour, fallback: time.Hour, age: 2 * time.Hour, want: false},
		{name: "created in the future", fallback: time.Hour, age: -time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{CreatedAt: created, TTL: tt.entryTTL}
			if got := e.IsExpired(created.Add(tt.age), tt.fallback); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Remaining(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &Entry{CreatedAt: created}

	if got := e.Remaining(created.Add(10*time.Minute), time.Hour); got != 50*time.Minute {
		t.Errorf("Remaining() = %v, want 50m", got)
	}
	if got := e.Remaining(created.Add(2*time.Hour), time.Hour); got != 0 {
		t.Errorf("Remaining() = %v, want 0", got)
	}
}
