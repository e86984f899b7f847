package math3d

import (
	"math"
	"testing"
)

func mat4Near(t *testing.T, got, want Mat4, eps float64) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > eps {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMat4InverseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", Identity()},
		{"translation", Translate(V3(1, -2, 3))},
		{"rotation", RotateY(0.7).Mul(RotateX(-0.3))},
		{"trs", Translate(V3(5, 0, -1)).Mul(RotateZ(1.1)).Mul(Scale(V3(2, 3, 0.5)))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inv, ok := tc.m.InverseOK()
			if !ok {
				t.Fatal("matrix reported singular")
			}
			mat4Near(t, tc.m.Mul(inv), Identity(), 1e-9)
			mat4Near(t, inv.Mul(tc.m), Identity(), 1e-9)
		})
	}
}

func TestMat4InverseOKSingular(t *testing.T) {
	// Zero scale on one axis collapses the matrix.
	m := Scale(V3(1, 0, 1))
	if _, ok := m.InverseOK(); ok {
		t.Error("expected singular matrix to report !ok")
	}

	// Inverse falls back to identity for singular input.
	mat4Near(t, m.Inverse(), Identity(), 0)
}

func TestMat4MulRowVec4MatchesTransposeMul(t *testing.T) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 1, 1)))
	v := V4(0.3, -1.2, 0.8, 2.5)

	got := m.MulRowVec4(v)
	want := m.Transpose().MulVec4(v)

	if math.Abs(got.X-want.X) > 1e-12 || math.Abs(got.Y-want.Y) > 1e-12 ||
		math.Abs(got.Z-want.Z) > 1e-12 || math.Abs(got.W-want.W) > 1e-12 {
		t.Errorf("MulRowVec4 = %v, want %v", got, want)
	}
}

func TestMat4FromQuat(t *testing.T) {
	// Quarter turn around Y: (0, sin(45°), 0, cos(45°)).
	s, c := math.Sin(math.Pi/4), math.Cos(math.Pi/4)
	q := FromQuat(0, s, 0, c)
	mat4Near(t, q, RotateY(math.Pi/2), 1e-12)

	// Identity quaternion.
	mat4Near(t, FromQuat(0, 0, 0, 1), Identity(), 0)
}

func TestMat4MulVec3PerspectiveDivide(t *testing.T) {
	proj := Perspective(math.Pi/2, 1, 1, 100)

	// Point on the near plane center maps to NDC z = -1 under the
	// OpenGL depth convention.
	p := proj.MulVec3(V3(0, 0, -1))
	if math.Abs(p.Z-(-1)) > 1e-9 {
		t.Errorf("near plane NDC z = %v, want -1", p.Z)
	}
}
