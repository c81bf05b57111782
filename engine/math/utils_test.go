package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp(5, 0, 3) = %d", got)
	}
	if got := Clamp(-1.5, -1.0, 1.0); got != -1.0 {
		t.Fatalf("Clamp(-1.5, -1, 1) = %f", got)
	}
	if got := Clamp(uint32(2), 1, 4); got != 2 {
		t.Fatalf("Clamp(2, 1, 4) = %d", got)
	}
}

func TestAngles(t *testing.T) {
	if !FloatCompare(DegToRad(180), K_PI) {
		t.Fatalf("DegToRad(180) = %f", DegToRad(180))
	}
	if got := RadToDeg(K_HALF_PI); got < 89.999 || got > 90.001 {
		t.Fatalf("RadToDeg(PI/2) = %f", got)
	}
	if got := WrapAngle(-K_HALF_PI); got < 3*K_HALF_PI-0.0001 || got > 3*K_HALF_PI+0.0001 {
		t.Fatalf("WrapAngle(-PI/2) = %f", got)
	}
}
