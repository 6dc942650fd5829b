package webview

import (
	"errors"
	"testing"
)

func TestEncodeResult(t *testing.T) {
	tests := []struct {
		v          any
		err        error
		wantStatus int32
		want       string
	}{
		{v: nil, wantStatus: 0, want: "null"},
		{v: map[string]int{"a": 1}, wantStatus: 0, want: `{"a":1}`},
		{err: errors.New(`bad "thing"`), wantStatus: 1, want: `"bad \"thing\""`},
		{v: func() {}, wantStatus: 1, want: `"json: unsupported type: func()"`},
	}
	for _, tt := range tests {
		status, got := encodeResult(tt.v, tt.err)
		if status != tt.wantStatus || got != tt.want {
			t.Errorf("encodeResult(%v, %v) = %d, %s; want %d, %s", tt.v, tt.err, status, got, tt.wantStatus, tt.want)
		}
	}
}
