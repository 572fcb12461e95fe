package user

import "testing"

func TestCanManageCatalog(t *testing.T) {
	tests := []struct {
		name string
		in   Subject
		want bool
	}{
		{name: "superuser", in: Subject{ID: 1, IsSuperuser: true}, want: true},
		{name: "regular", in: Subject{ID: 2}, want: false},
		{name: "anonymous superuser flag", in: Subject{IsSuperuser: true}, want: false},
	}

	for _, tt := range tests {
		if got := CanManageCatalog(tt.in); got != tt.want {
			t.Fatalf("%s: CanManageCatalog(%+v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}
