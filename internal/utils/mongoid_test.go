package utils

import "testing"

func TestObjectIDToUUID(t *testing.T) {
	got, err := ObjectIDToUUID("682c5990bf4a775c8de9598a")
	if err != nil {
		t.Fatalf("ObjectIDToUUID: %v", err)
	}
	if want := "00000000-682c-5990-bf4a-775c8de9598a"; got.String() != want {
		t.Errorf("got %s, want %s", got, want)
	}

	for _, bad := range []string{"", "682c5990", "zz2c5990bf4a775c8de9598a"} {
		if _, err := ObjectIDToUUID(bad); err == nil {
			t.Errorf("ObjectIDToUUID(%q) should fail", bad)
		}
	}
}

func TestOrderUUID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"682C5990BF4A775C8DE9598A", "00000000-682c-5990-bf4a-775c8de9598a", true},
		{"3f2504e0-4f89-11d3-9a0c-0305e82c3301", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", true},
		{"ORD-1001", "", false},
		{"  ", "", false},
	}
	for _, tt := range tests {
		got, ok := OrderUUID(tt.in)
		if ok != tt.wantOK {
			t.Errorf("OrderUUID(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("OrderUUID(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
