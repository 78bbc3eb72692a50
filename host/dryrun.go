package host

import (
	"context"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/utils"
)

// DryRun is a local stand-in engine used to validate pipelines and feed the
// writers without a host application. It is not a renderer: every array is
// a placeholder built by projecting entity bounds through the camera, with
// correct shapes, dtypes and instance ids.
type DryRun struct {
	sc *scene.Scene
}

func NewDryRun() *DryRun {
	return &DryRun{}
}

func (d *DryRun) Initialize(ctx context.Context, sc *scene.Scene) error {
	if sc == nil {
		return errors.Errorf("No scene")
	}
	d.sc = sc
	log.Printf("[dryrun] Initialized scene %q with %d entities", sc.Name(), len(sc.Entities()))
	return nil
}

// SettleRigidBodies drops every entity so its bounds rest on the z=0
// plane. Real dynamics are host business; this keeps poses plausible for
// writer validation.
func (d *DryRun) SettleRigidBodies(ctx context.Context, opts PhysicsOptions) (map[string]mgl64.Mat4, error) {
	if d.sc == nil {
		return nil, errors.Errorf("Engine not initialized")
	}
	moved := make(map[string]mgl64.Mat4)
	for _, e := range d.sc.Entities() {
		if kind, ok := e.CustomProperty(scene.PropPhysics); ok && kind == "static" {
			continue
		}
		min, _ := e.WorldBounds()
		if min.Z() == 0 {
			continue
		}
		loc := e.Location()
		e.SetLocation(mgl64.Vec3{loc.X(), loc.Y(), loc.Z() - min.Z()})
		moved[e.Name()] = e.Transform()
	}
	log.Printf("[dryrun] Settled %d entities onto the ground plane", len(moved))
	return moved, nil
}

func (d *DryRun) Render(ctx context.Context, req RenderRequest) (*render.Batch, error) {
	if d.sc == nil {
		return nil, errors.Errorf("Engine not initialized")
	}
	cam := d.sc.Camera()
	if req.FrameStart < 0 || req.FrameEnd > cam.PoseCount() || req.FrameStart >= req.FrameEnd {
		return nil, errors.Errorf("Invalid frame range [%d, %d) with %d key frames",
			req.FrameStart, req.FrameEnd, cam.PoseCount())
	}

	batch := &render.Batch{}
	for frame := req.FrameStart; frame < req.FrameEnd; frame++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "Render cancelled at frame %d", frame)
		}
		f, err := d.renderFrame(frame, req.Outputs)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to render frame %d", frame)
		}
		if err := batch.Append(f); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (d *DryRun) Close() error { return nil }

// footprint is the projected screen rectangle of one entity at one frame.
type footprint struct {
	instance   int
	category   int
	minU, maxU int
	minV, maxV int
	depth      float64
	flowU      float64
	flowV      float64
}

func (d *DryRun) renderFrame(frame int, outputs render.Outputs) (*render.Frame, error) {
	cam := d.sc.Camera()
	w, h := cam.Resolution()
	world2cam, err := cam.World2CV(frame)
	if err != nil {
		return nil, err
	}

	prints := make([]*footprint, 0, len(d.sc.Entities()))
	for _, e := range d.sc.Entities() {
		fp := d.project(e, frame, world2cam, w, h)
		if fp != nil {
			prints = append(prints, fp)
		}
	}

	f := render.NewFrame(frame)

	colors := make([]uint8, h*w*3)
	depth := make([]float32, h*w)
	distance := make([]float32, h*w)
	normals := make([]float32, h*w*3)
	instSeg := make([]uint16, h*w)
	classSeg := make([]uint16, h*w)
	flow := make([]float32, h*w*2)

	// background: a flat gradient so frames are visually distinct
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			colors[i*3+0] = uint8((x + frame) % 256)
			colors[i*3+1] = uint8((y + frame) % 256)
			colors[i*3+2] = uint8(frame % 256)
			normals[i*3+2] = 1
		}
	}

	for _, fp := range prints {
		tint := uint8(40 + (fp.instance*53)%200)
		for y := fp.minV; y <= fp.maxV; y++ {
			for x := fp.minU; x <= fp.maxU; x++ {
				i := y*w + x
				// nearest footprint wins
				if depth[i] != 0 && float64(depth[i]) < fp.depth {
					continue
				}
				depth[i] = float32(fp.depth)
				distance[i] = float32(fp.depth)
				colors[i*3+0] = tint
				colors[i*3+1] = tint
				colors[i*3+2] = 255 - tint
				normals[i*3+0] = 0
				normals[i*3+1] = 0
				normals[i*3+2] = -1
				instSeg[i] = uint16(fp.instance)
				classSeg[i] = uint16(fp.category)
				flow[i*2+0] = float32(fp.flowU)
				flow[i*2+1] = float32(fp.flowV)
			}
		}
	}

	add := func(name string, dtype render.DType, shape []int, data interface{}) error {
		return f.Add(&render.Array{Name: name, DType: dtype, Shape: shape, Data: data})
	}
	if err := add(render.OutputColors, render.Uint8, []int{h, w, 3}, colors); err != nil {
		return nil, err
	}
	if outputs.Depth {
		if err := add(render.OutputDepth, render.Float32, []int{h, w}, depth); err != nil {
			return nil, err
		}
	}
	if outputs.Distance {
		if err := add(render.OutputDistance, render.Float32, []int{h, w}, distance); err != nil {
			return nil, err
		}
	}
	if outputs.Normals {
		if err := add(render.OutputNormals, render.Float32, []int{h, w, 3}, normals); err != nil {
			return nil, err
		}
	}
	if outputs.InstanceSeg {
		if err := add(render.OutputInstanceSeg, render.Uint16, []int{h, w}, instSeg); err != nil {
			return nil, err
		}
	}
	if outputs.ClassSeg {
		if err := add(render.OutputClassSeg, render.Uint16, []int{h, w}, classSeg); err != nil {
			return nil, err
		}
	}
	if outputs.ForwardFlow {
		if err := add(render.OutputForwardFlow, render.Float32, []int{h, w, 2}, flow); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// project computes the screen footprint of an entity at a frame, nil when
// fully outside the view or behind the camera.
func (d *DryRun) project(e *scene.Entity, frame int, world2cam mgl64.Mat4, w, h int) *footprint {
	cam := d.sc.Camera()
	k := cam.K()

	pose := e.PoseAt(frame)
	localMin, localMax := e.Mesh().Bounds()
	min, max := utils.TransformAABB(pose, localMin, localMax)

	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	depthSum := 0.0
	visible := 0
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{
			cornerPick(i&1 == 0, min.X(), max.X()),
			cornerPick(i&2 == 0, min.Y(), max.Y()),
			cornerPick(i&4 == 0, min.Z(), max.Z()),
		}
		u, v, z, ok := utils.ProjectPoint(k, world2cam, corner)
		if !ok {
			continue
		}
		visible++
		depthSum += z
		minU, maxU = math.Min(minU, u), math.Max(maxU, u)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
	}
	if visible == 0 {
		return nil
	}

	fp := &footprint{
		instance: d.sc.InstanceID(e),
		minU:     clampInt(int(math.Floor(minU)), 0, w-1),
		maxU:     clampInt(int(math.Ceil(maxU)), 0, w-1),
		minV:     clampInt(int(math.Floor(minV)), 0, h-1),
		maxV:     clampInt(int(math.Ceil(maxV)), 0, h-1),
		depth:    depthSum / float64(visible),
	}
	if maxU < 0 || minU > float64(w-1) || maxV < 0 || minV > float64(h-1) {
		return nil
	}
	if category, err := e.IntProperty(scene.PropCategoryID); err == nil {
		fp.category = category
	}

	// forward flow: movement of the projected center towards the next frame
	if next := frame + 1; next < cam.PoseCount() {
		if nextW2C, err := cam.World2CV(next); err == nil {
			center := min.Add(max).Mul(0.5)
			nextCenter := e.PoseAt(next).Mul4x1(
				pose.Inv().Mul4x1(center.Vec4(1))).Vec3()
			u0, v0, _, ok0 := utils.ProjectPoint(k, world2cam, center)
			u1, v1, _, ok1 := utils.ProjectPoint(k, nextW2C, nextCenter)
			if ok0 && ok1 {
				fp.flowU = u1 - u0
				fp.flowV = v1 - v0
			}
		}
	}
	return fp
}

func cornerPick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
