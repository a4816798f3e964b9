package job

import (
	"testing"
	"time"
)

func TestBoundsValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		b       Bounds
		wantErr bool
	}{
		{name: "valid", b: Bounds{Min: time.Second, Max: time.Hour}},
		{name: "equal", b: Bounds{Min: time.Minute, Max: time.Minute}},
		{name: "zero min", b: Bounds{Min: 0, Max: time.Hour}, wantErr: true},
		{name: "zero max", b: Bounds{Min: time.Second, Max: 0}, wantErr: true},
		{name: "negative", b: Bounds{Min: -time.Second, Max: time.Hour}, wantErr: true},
		{name: "inverted", b: Bounds{Min: time.Hour, Max: time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.b.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBoundsClamp(t *testing.T) {
	t.Parallel()
	b := Bounds{Min: 10 * time.Second, Max: time.Hour}

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{name: "below", in: time.Second, want: 10 * time.Second},
		{name: "at min", in: 10 * time.Second, want: 10 * time.Second},
		{name: "inside", in: time.Minute, want: time.Minute},
		{name: "at max", in: time.Hour, want: time.Hour},
		{name: "above", in: 48 * time.Hour, want: time.Hour},
		{name: "zero", in: 0, want: 10 * time.Second},
		{name: "negative", in: -time.Minute, want: 10 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := b.Clamp(tt.in); got != tt.want {
				t.Fatalf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
