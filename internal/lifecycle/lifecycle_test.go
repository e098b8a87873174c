package lifecycle

import "testing"

func TestClampDelay(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{120, 120},
		{maxDelaySeconds + 1000, maxDelaySeconds},
	}
	for _, c := range cases {
		if got := clampDelay(c.in); got != c.want {
			t.Errorf("clampDelay(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBuildShutdownCommandOnCurrentOS(t *testing.T) {
	// buildShutdownCommand only special-cases windows/linux/darwin; this
	// test exercises the branch logic indirectly by confirming the
	// function does not panic for supported delays on whatever OS the
	// test runs on.
	if _, err := buildShutdownCommand(true, 0); err != nil {
		t.Skipf("unsupported OS for this test environment: %v", err)
	}
	if _, err := buildShutdownCommand(false, 60); err != nil {
		t.Skipf("unsupported OS for this test environment: %v", err)
	}
}
