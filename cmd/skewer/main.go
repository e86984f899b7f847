// skewer - pick triangles in glTF scenes from your terminal.
//
// Interactive controls:
//
//	Mouse drag  - Drag a selection rectangle; hits highlight on release
//	Click       - Point pick (single ray through the scene)
//	Scroll      - Zoom in/out
//	W/S         - Pitch the model up/down
//	A/D         - Yaw the model left/right
//	Space       - Apply random impulse
//	R           - Reset rotation and selection
//	Esc         - Quit (hit list is printed on exit)
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/log"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/pick"
	"github.com/taigrr/skewer/pkg/render"
	"github.com/taigrr/skewer/pkg/scene"
)

var (
	targetFPS = flag.Int("fps", 60, "Target FPS")
	bgColor   = flag.String("bg", "20,20,28", "Background color (R,G,B)")
	rectFlag  = flag.String("rect", "", "Headless pick rectangle \"x0,y0,x1,y1\" in framebuffer pixels")
	snapshot  = flag.String("snapshot", "", "Write a PNG snapshot of the headless pick")
	camPos    = flag.String("campos", "0,0,5", "Camera position \"x,y,z\"")
	fovDeg    = flag.Float64("fov", 60, "Vertical field of view in degrees")
	fbWidthF  = flag.Int("width", 160, "Headless framebuffer width")
	fbHeightF = flag.Int("height", 96, "Headless framebuffer height")
	verbose   = flag.Bool("v", false, "Debug logging (polytope dumps, traversal)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "skewer - terminal triangle picking for glTF scenes\n\n")
		fmt.Fprintf(os.Stderr, "Usage: skewer [options] <model.glb|model.gltf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Selection rectangle (hits highlight on release)\n")
		fmt.Fprintf(os.Stderr, "  Click       - Point pick\n")
		fmt.Fprintf(os.Stderr, "  Scroll      - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Rotate model\n")
		fmt.Fprintf(os.Stderr, "  Space       - Random spin\n")
		fmt.Fprintf(os.Stderr, "  R           - Reset view and selection\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit and print the hit list\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	modelPath := flag.Arg(0)

	var err error
	if *rectFlag != "" {
		err = runHeadless(modelPath)
	} else {
		err = runInteractive(modelPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadScene loads the model and wraps it in a transform that centers
// it at the origin and scales it to fit the default camera framing.
func loadScene(modelPath string) (scene.Node, error) {
	root, err := scene.LoadGLTF(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	b := root.Bound()
	if !b.Valid() || b.Radius == 0 {
		return root, nil
	}
	s := 1.5 / b.Radius
	fit := math3d.ScaleUniform(s).Mul(math3d.Translate(b.Center.Negate()))
	return scene.NewMatrixTransform("fit", fit, root), nil
}

func parseVec3(s string, fallback math3d.Vec3) math3d.Vec3 {
	var x, y, z float64
	if n, err := fmt.Sscanf(s, "%f,%f,%f", &x, &y, &z); err != nil || n != 3 {
		return fallback
	}
	return math3d.V3(x, y, z)
}

func newCamera(fbWidth, fbHeight int) *scene.Camera {
	cam := scene.NewCamera()
	cam.SetPosition(parseVec3(*camPos, math3d.V3(0, 0, 5)))
	cam.SetFOV(*fovDeg * math.Pi / 180)
	cam.SetAspectRatio(float64(fbWidth) / float64(fbHeight))
	cam.SetViewport(0, 0, float64(fbWidth), float64(fbHeight))
	cam.LookAt(math3d.Zero3())
	return cam
}

// runHeadless performs one pick over the model and prints every hit.
func runHeadless(modelPath string) error {
	var x0, y0, x1, y1 float64
	if n, err := fmt.Sscanf(*rectFlag, "%f,%f,%f,%f", &x0, &y0, &x1, &y1); err != nil || n != 4 {
		return fmt.Errorf("invalid -rect %q, want \"x0,y0,x1,y1\"", *rectFlag)
	}

	root, err := loadScene(modelPath)
	if err != nil {
		return err
	}

	cam := newCamera(*fbWidthF, *fbHeightF)

	pi := pick.NewFromCamera(cam, x0, y0, x1, y1)
	if err := root.Accept(pi); err != nil {
		return fmt.Errorf("pick traversal: %w", err)
	}

	fmt.Printf("%s: %d hit(s) in rect (%g,%g)-(%g,%g)\n",
		filepath.Base(modelPath), len(pi.Intersections), x0, y0, x1, y1)
	for i, in := range pi.Intersections {
		fmt.Printf("%3d: %s\n", i, in)
	}

	if *snapshot != "" {
		fb := render.NewFramebuffer(*fbWidthF, *fbHeightF)
		fb.Clear(parseColor(*bgColor))
		w := render.NewWireframe(cam, fb)
		if err := w.DrawScene(root, render.ColorWire, render.HighlightsFromIntersections(pi.Intersections)); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		for _, in := range pi.Intersections {
			w.DrawPoint(in.WorldIntersection, 0.05, render.ColorMarquee)
		}
		fb.DrawRectOutline(int(x0), int(y0), int(x1-x0), int(y1-y0), render.ColorMarquee)
		if err := fb.SavePNG(*snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		log.Info("snapshot written", "path", *snapshot)
	}
	return nil
}

// RotationAxis tracks position and velocity for one rotation axis with spring decay.
type RotationAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // internal spring velocity (for animating Velocity toward 0)
}

// NewRotationAxis creates an axis with harmonica spring for smooth velocity decay.
func NewRotationAxis(fps int) RotationAxis {
	return RotationAxis{
		// Frequency 4.0 = moderate speed, damping 1.0 = critically damped (no overshoot)
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies velocity to position and decays velocity toward 0 using spring.
func (a *RotationAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// RotationState holds model rotation with harmonica spring physics.
type RotationState struct {
	Pitch, Yaw RotationAxis
	fps        int
}

func NewRotationState(fps int) *RotationState {
	return &RotationState{
		Pitch: NewRotationAxis(fps),
		Yaw:   NewRotationAxis(fps),
		fps:   fps,
	}
}

func (r *RotationState) Update() {
	r.Pitch.Update()
	r.Yaw.Update()
}

func (r *RotationState) ApplyImpulse(pitch, yaw float64) {
	r.Pitch.Velocity += pitch
	r.Yaw.Velocity += yaw
}

func (r *RotationState) Reset() {
	r.Pitch = NewRotationAxis(r.fps)
	r.Yaw = NewRotationAxis(r.fps)
}

func (r *RotationState) Matrix() math3d.Mat4 {
	return math3d.RotateX(r.Pitch.Position).Mul(math3d.RotateY(r.Yaw.Position))
}

// selection tracks an in-progress marquee drag in framebuffer pixels.
type selection struct {
	active         bool
	startX, startY int
	endX, endY     int
}

func parseColor(s string) render.Color {
	var r, g, b uint8 = 20, 20, 28
	fmt.Sscanf(s, "%d,%d,%d", &r, &g, &b)
	return render.RGB(r, g, b)
}

func runInteractive(modelPath string) error {
	root, err := loadScene(modelPath)
	if err != nil {
		return err
	}

	// The spin transform sits between the pick/camera space and the
	// loaded model, so every pick exercises the transform stack.
	spin := scene.NewMatrixTransform("spin", math3d.Identity(), root)

	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	termRenderer := render.NewTerminalRenderer(term, width, height)
	fbWidth, fbHeight := termRenderer.FramebufferSize()
	fb := render.NewFramebuffer(fbWidth, fbHeight)

	camera := newCamera(fbWidth, fbHeight)
	cameraZ := camera.Position.Z

	rotation := NewRotationState(*targetFPS)

	var sel selection
	var highlights render.Highlights
	var hits []*pick.Intersection

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Input state
	inputTorque := struct{ pitch, yaw float64 }{}
	const torqueStrength = 3.0

	// runPick picks the current rectangle against the spun scene and
	// replaces the highlight set.
	runPick := func(x0, y0, x1, y1 float64) {
		if x1 < x0 {
			x0, x1 = x1, x0
		}
		if y1 < y0 {
			y0, y1 = y1, y0
		}
		pi := pick.NewFromCamera(camera, x0, y0, x1, y1)
		if err := spin.Accept(pi); err != nil {
			log.Error("pick traversal", "err", err)
			return
		}
		hits = pi.Intersections
		highlights = render.HighlightsFromIntersections(hits)
	}

	// Event handler
	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				width, height = ev.Width, ev.Height
				term.Erase()
				term.Resize(width, height)
				termRenderer = render.NewTerminalRenderer(term, width, height)
				fbWidth, fbHeight = termRenderer.FramebufferSize()
				fb = render.NewFramebuffer(fbWidth, fbHeight)
				camera.SetAspectRatio(float64(fbWidth) / float64(fbHeight))
				camera.SetViewport(0, 0, float64(fbWidth), float64(fbHeight))

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
					cancel()
					return
				case ev.MatchString("r"):
					rotation.Reset()
					cameraZ = 5.0
					camera.SetPosition(math3d.V3(0, 0, cameraZ))
					highlights = nil
					hits = nil
				case ev.MatchString("w", "up"):
					inputTorque.pitch = -torqueStrength
				case ev.MatchString("s", "down"):
					inputTorque.pitch = torqueStrength
				case ev.MatchString("a", "left"):
					inputTorque.yaw = -torqueStrength
				case ev.MatchString("d", "right"):
					inputTorque.yaw = torqueStrength
				case ev.MatchString("space"):
					rotation.ApplyImpulse(
						(rand.Float64()-0.5)*1.5,
						(rand.Float64()-0.5)*1.5,
					)
				case ev.MatchString("+", "="):
					cameraZ = math.Max(1, cameraZ-0.5)
					camera.SetPosition(math3d.V3(0, 0, cameraZ))
				case ev.MatchString("-", "_"):
					cameraZ = math.Min(20, cameraZ+0.5)
					camera.SetPosition(math3d.V3(0, 0, cameraZ))
				}

			case uv.KeyReleaseEvent:
				switch {
				case ev.MatchString("w"), ev.MatchString("up"), ev.MatchString("s"), ev.MatchString("down"):
					inputTorque.pitch = 0
				case ev.MatchString("a"), ev.MatchString("left"), ev.MatchString("d"), ev.MatchString("right"):
					inputTorque.yaw = 0
				}

			case uv.MouseClickEvent:
				// Terminal rows are two framebuffer pixels tall.
				sel = selection{
					active: true,
					startX: ev.X, startY: ev.Y * 2,
					endX: ev.X, endY: ev.Y * 2,
				}

			case uv.MouseMotionEvent:
				if sel.active {
					sel.endX, sel.endY = ev.X, ev.Y*2
				}

			case uv.MouseReleaseEvent:
				if sel.active {
					sel.active = false
					runPick(float64(sel.startX), float64(sel.startY), float64(sel.endX), float64(sel.endY))
				}

			case uv.MouseWheelEvent:
				switch ev.Button {
				case uv.MouseWheelUp:
					cameraZ = math.Max(1, cameraZ-0.5)
				case uv.MouseWheelDown:
					cameraZ = math.Min(20, cameraZ+0.5)
				}
				camera.SetPosition(math3d.V3(0, 0, cameraZ))
			}
		}
	}()

	// Main loop
	targetDuration := time.Second / time.Duration(*targetFPS)
	lastFrame := time.Now()
	bg := parseColor(*bgColor)

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	for {
		select {
		case <-ctx.Done():
			cleanup()
			fmt.Printf("%d hit(s)\n", len(hits))
			for i, in := range hits {
				fmt.Printf("%3d: %s\n", i, in)
			}
			return nil
		default:
		}

		now := time.Now()
		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now

		if dt > 0.1 {
			dt = 0.1
		}

		// Apply input torque and decay it (key release events unreliable)
		rotation.ApplyImpulse(inputTorque.pitch*dt, inputTorque.yaw*dt)
		inputTorque.pitch *= 0.9
		inputTorque.yaw *= 0.9

		rotation.Update()
		spin.Matrix = rotation.Matrix()

		fb.Clear(bg)

		w := render.NewWireframe(camera, fb)
		if err := w.DrawScene(spin, render.ColorWire, highlights); err != nil {
			log.Error("render", "err", err)
		}
		for _, in := range hits {
			w.DrawPoint(in.WorldIntersection, 0.05, render.ColorMarquee)
		}
		if sel.active {
			fb.DrawRectOutline(sel.startX, sel.startY, sel.endX-sel.startX+1, sel.endY-sel.startY+1, render.ColorMarquee)
		}

		termRenderer.Render(fb)
		if err := termRenderer.Flush(); err != nil {
			cleanup()
			return fmt.Errorf("flush: %w", err)
		}

		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
