package scene

import (
	"math"
	"testing"

	"github.com/taigrr/skewer/pkg/math3d"
)

func TestLoadGLTFInvalidPath(t *testing.T) {
	_, err := LoadGLTF("/nonexistent/path/model.glb")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()

	if c.FOV != math.Pi/3 {
		t.Errorf("default FOV = %v, want pi/3", c.FOV)
	}
	if c.Near != 0.1 || c.Far != 1000 {
		t.Errorf("default clip planes = (%v, %v), want (0.1, 1000)", c.Near, c.Far)
	}
	if c.Viewport.MinDepth != -1 || c.Viewport.MaxDepth != 1 {
		t.Errorf("default depth range = [%v, %v], want [-1, 1]", c.Viewport.MinDepth, c.Viewport.MaxDepth)
	}
}

func TestCameraLookAt(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math3d.V3(0, 0, 5))
	c.LookAt(math3d.Zero3())

	fwd := c.Forward()
	if math.Abs(fwd.X) > 1e-9 || math.Abs(fwd.Y) > 1e-9 || math.Abs(fwd.Z+1) > 1e-9 {
		t.Errorf("Forward() = %v, want (0,0,-1)", fwd)
	}
}

func TestCameraWorldToScreen(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math3d.V3(0, 0, 5))
	c.SetRotation(0, 0, 0)
	c.SetAspectRatio(1)

	x, y, _, visible := c.WorldToScreen(math3d.Zero3(), 100, 100)
	if !visible {
		t.Fatal("origin in front of camera should be visible")
	}
	if math.Abs(x-50) > 1e-6 || math.Abs(y-50) > 1e-6 {
		t.Errorf("screen position = (%v, %v), want (50, 50)", x, y)
	}

	_, _, _, visible = c.WorldToScreen(math3d.V3(0, 0, 10), 100, 100)
	if visible {
		t.Error("point behind camera should not be visible")
	}
}
