package ftpc

import (
	"testing"
	"time"
)

func TestParsePasvAddr(t *testing.T) {
	tests := []struct {
		msg     string
		want    string
		wantErr bool
	}{
		{"Entering Passive Mode (127,0,0,1,78,52)", "127.0.0.1:20020", false},
		{"227 ok (10,1,2,3,4,1)", "10.1.2.3:1025", false},
		{"127,0,0,1,0,21", "127.0.0.1:21", false}, // no parentheses
		{"Entering Passive Mode (127,0,0,1,78)", "", true},
		{"Entering Passive Mode (127,0,0,1,999,0)", "", true},
		{"no tuple here", "", true},
	}

	for _, tt := range tests {
		got, err := parsePasvAddr(tt.msg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: got %q, want error", tt.msg, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.msg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestParseMDTM(t *testing.T) {
	got, err := ParseMDTM("20250825151723")
	if err != nil {
		t.Fatalf("ParseMDTM: %v", err)
	}

	want := time.Date(2025, 8, 25, 15, 17, 23, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseMDTM_Malformed(t *testing.T) {
	for _, payload := range []string{"", "2025", "not-a-timestamp", "202508251517230", "99999999999999"} {
		if _, err := ParseMDTM(payload); err == nil {
			t.Errorf("%q: want error", payload)
		}
	}
}
