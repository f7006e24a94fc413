package version

import "testing"

func TestString(t *testing.T) {
	old := [3]string{Version, Commit, BuildTime}
	defer func() { Version, Commit, BuildTime = old[0], old[1], old[2] }()

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2024-01-15T12:00:00Z"
	want := "1.2.0 (abc1234) built 2024-01-15T12:00:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if a := Attr(); a.Key != "build" {
		t.Errorf("Attr().Key = %q, want build", a.Key)
	}
}
