package script

import (
	"github.com/Shopify/go-lua"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/sampler"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/scene/loader"
	"github.com/procscene/procscene/status"
	"github.com/procscene/procscene/writer/bop"
	"github.com/procscene/procscene/writer/coco"
	"github.com/procscene/procscene/writer/hdf5"
)

const (
	sceneTypeName  = "procscene.scene"
	entityTypeName = "procscene.entity"
	batchTypeName  = "procscene.batch"
)

// sceneHandle ties a scene userdata back to the runner owning the engine.
type sceneHandle struct {
	r  *Runner
	sc *scene.Scene
}

func registerSceneType(state *lua.State) {
	lua.NewMetaTable(state, sceneTypeName)
	state.NewTable()
	lua.SetFunctions(state, sceneMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerEntityType(state *lua.State) {
	lua.NewMetaTable(state, entityTypeName)
	state.NewTable()
	lua.SetFunctions(state, entityMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerBatchType(state *lua.State) {
	lua.NewMetaTable(state, batchTypeName)
	state.NewTable()
	lua.SetFunctions(state, batchMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerProc(state *lua.State, r *Runner) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "scene", Function: func(l *lua.State) int {
			name := lua.OptString(l, 1, "")
			l.PushUserData(&sceneHandle{r: r, sc: scene.New(name)})
			lua.SetMetaTableNamed(l, sceneTypeName)
			return 1
		}},
		{Name: "version", Function: func(l *lua.State) int {
			l.PushString(config.Version)
			return 1
		}},
		{Name: "set_seed", Function: func(l *lua.State) int {
			config.SetSeed(int64(lua.CheckInteger(l, 1)))
			r.rnd = nil // draws after this point use the new seed
			return 0
		}},
		{Name: "set_resolution", Function: func(l *lua.State) int {
			w := lua.CheckInteger(l, 1)
			h := lua.CheckInteger(l, 2)
			if err := config.SetResolution(w, h); err != nil {
				lua.Errorf(l, "%s", err.Error())
			}
			return 0
		}},
	}, 0)

	state.NewTable()
	for i, arg := range r.args {
		state.PushString(arg)
		state.RawSetInt(-2, i+1)
	}
	state.SetField(-2, "args")
	state.SetGlobal("proc")
}

func registerSampler(state *lua.State, r *Runner) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "range", Function: func(l *lua.State) int {
			min := lua.CheckNumber(l, 1)
			max := lua.CheckNumber(l, 2)
			l.PushNumber(r.sampler().Range(min, max))
			return 1
		}},
		{Name: "uniform", Function: func(l *lua.State) int {
			pushVec3(l, r.sampler().UniformBox(checkVec3(l, 1), checkVec3(l, 2)))
			return 1
		}},
		{Name: "on_sphere", Function: func(l *lua.State) int {
			pushVec3(l, r.sampler().OnSphere(checkVec3(l, 1), lua.CheckNumber(l, 2)))
			return 1
		}},
		{Name: "in_sphere", Function: func(l *lua.State) int {
			pushVec3(l, r.sampler().InSphere(checkVec3(l, 1), lua.CheckNumber(l, 2)))
			return 1
		}},
		{Name: "shell", Function: func(l *lua.State) int {
			pushVec3(l, r.sampler().Shell(checkVec3(l, 1), lua.CheckNumber(l, 2), lua.CheckNumber(l, 3)))
			return 1
		}},
		{Name: "disk", Function: func(l *lua.State) int {
			pushVec3(l, r.sampler().OnDisk(checkVec3(l, 1), lua.CheckNumber(l, 2), checkVec3(l, 3)))
			return 1
		}},
	}, 0)
	state.SetGlobal("sampler")
}

func registerWriters(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "hdf5", Function: writerHDF5},
		{Name: "coco", Function: writerCoco},
		{Name: "bop", Function: writerBop},
	}, 0)
	state.SetGlobal("writers")
}

var sceneMethods = []lua.RegistryFunction{
	{Name: "load", Function: sceneLoad},
	{Name: "get", Function: sceneGet},
	{Name: "add_light", Function: sceneAddLight},
	{Name: "set_intrinsics", Function: sceneSetIntrinsics},
	{Name: "set_fov", Function: sceneSetFOV},
	{Name: "camera_pose", Function: sceneCameraPose},
	{Name: "place", Function: scenePlace},
	{Name: "key_poses", Function: sceneKeyPoses},
	{Name: "settle", Function: sceneSettle},
	{Name: "render", Function: sceneRender},
}

func sceneLoad(l *lua.State) int {
	h := checkScene(l)
	path := lua.CheckString(l, 2)
	entities, err := loader.LoadEntities(path)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	l.NewTable()
	for i, e := range entities {
		if err := h.sc.Add(e); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		pushEntity(l, e)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

func sceneGet(l *lua.State) int {
	h := checkScene(l)
	name := lua.CheckString(l, 2)
	e, err := h.sc.Get(name)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	pushEntity(l, e)
	return 1
}

func sceneAddLight(l *lua.State) int {
	h := checkScene(l)
	lua.CheckType(l, 2, lua.TypeTable)
	kind := scene.LightKind(stringField(l, 2, "kind", string(scene.LightPoint)))
	switch kind {
	case scene.LightPoint, scene.LightSun, scene.LightArea:
	default:
		lua.Errorf(l, "unknown light kind %q", kind)
	}
	light := scene.NewLight(stringField(l, 2, "name", ""), kind)
	light.Energy = numberField(l, 2, "energy", light.Energy)
	if v, ok := vec3Field(l, 2, "color"); ok {
		light.Color = v
	}
	if v, ok := vec3Field(l, 2, "location"); ok {
		light.Transform.SetCol(3, v.Vec4(1))
	}
	h.sc.AddLight(light)
	return 0
}

func sceneSetIntrinsics(l *lua.State) int {
	h := checkScene(l)
	err := h.sc.Camera().SetIntrinsics(
		lua.CheckNumber(l, 2), lua.CheckNumber(l, 3),
		lua.CheckNumber(l, 4), lua.CheckNumber(l, 5))
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func sceneSetFOV(l *lua.State) int {
	h := checkScene(l)
	if err := h.sc.Camera().SetIntrinsicsFromFOV(mgl64.DegToRad(lua.CheckNumber(l, 2))); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

// sceneCameraPose appends a key frame pose looking from location towards
// look_at and returns the key frame index.
func sceneCameraPose(l *lua.State) int {
	h := checkScene(l)
	lua.CheckType(l, 2, lua.TypeTable)
	eye := requireVec3Field(l, 2, "location")
	target, _ := vec3Field(l, 2, "look_at")
	jitter := numberField(l, 2, "jitter", 0)

	var pose mgl64.Mat4
	if jitter > 0 {
		pose = h.r.sampler().LookAtJittered(eye, target, jitter)
	} else {
		pose = h.r.sampler().LookAt(eye, target)
	}
	frame := h.sc.Camera().AddPose(pose)
	h.sc.KeyAllPoses(frame)
	l.PushInteger(frame)
	return 1
}

func scenePlace(l *lua.State) int {
	h := checkScene(l)
	lua.CheckType(l, 2, lua.TypeTable)
	opts := sampler.PlacementOptions{
		Min:            requireVec3Field(l, 2, "min"),
		Max:            requireVec3Field(l, 2, "max"),
		MaxTries:       intField(l, 2, "max_tries", 0),
		RandomRotation: boolField(l, 2, "random_rotation"),
	}
	entities := entityListField(l, 2, "entities")
	if len(entities) == 0 {
		lua.Errorf(l, "place needs a non-empty entities list")
	}
	obstacles := entityListField(l, 2, "obstacles")
	if err := sampler.PlaceEntities(h.r.sampler(), entities, obstacles, opts); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func sceneKeyPoses(l *lua.State) int {
	h := checkScene(l)
	h.sc.KeyAllPoses(lua.CheckInteger(l, 2))
	return 0
}

func sceneSettle(l *lua.State) int {
	h := checkScene(l)
	opts := host.PhysicsOptions{MaxSimSeconds: 10, CheckIntervals: 1, SubstepsPerSec: 60}
	if !l.IsNoneOrNil(2) {
		lua.CheckType(l, 2, lua.TypeTable)
		opts.MaxSimSeconds = numberField(l, 2, "max_sim_seconds", opts.MaxSimSeconds)
		opts.CheckIntervals = numberField(l, 2, "check_intervals", opts.CheckIntervals)
		opts.SubstepsPerSec = intField(l, 2, "substeps", opts.SubstepsPerSec)
	}
	if err := h.r.ensureInitialized(h.sc); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	if _, err := h.r.engine.SettleRigidBodies(h.r.ctx, opts); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func sceneRender(l *lua.State) int {
	h := checkScene(l)
	start, end := h.sc.FrameRange()
	if end == 0 {
		lua.Errorf(l, "scene %q has no camera poses to render", h.sc.Name())
	}

	var outputs render.Outputs
	req := host.RenderRequest{FrameStart: start, FrameEnd: end}
	if !l.IsNoneOrNil(2) {
		lua.CheckType(l, 2, lua.TypeTable)
		l.Field(2, "outputs")
		if !l.IsNoneOrNil(-1) {
			for _, name := range stringList(l, -1) {
				if err := outputs.Enable(name); err != nil {
					lua.Errorf(l, "%s", err.Error())
				}
			}
		}
		l.Pop(1)
		req.FrameStart = intField(l, 2, "frame_start", req.FrameStart)
		req.FrameEnd = intField(l, 2, "frame_end", req.FrameEnd)
	}
	req.Outputs = outputs

	if err := h.r.ensureInitialized(h.sc); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	batch, err := h.r.engine.Render(h.r.ctx, req)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	w, hgt := h.sc.Camera().Resolution()
	if err := render.ValidateBatch(batch, outputs, w, hgt); err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	status.Stagef("render", 1, "Rendered %d frames of %q", batch.FrameCount(), h.sc.Name())
	l.PushUserData(&batchHandle{sc: h.sc, batch: batch})
	lua.SetMetaTableNamed(l, batchTypeName)
	return 1
}

var entityMethods = []lua.RegistryFunction{
	{Name: "name", Function: entityName},
	{Name: "location", Function: entityLocation},
	{Name: "set_location", Function: entitySetLocation},
	{Name: "set_rotation", Function: entitySetRotation},
	{Name: "set_property", Function: entitySetProperty},
}

func entityName(l *lua.State) int {
	l.PushString(checkEntity(l).Name())
	return 1
}

func entityLocation(l *lua.State) int {
	pushVec3(l, checkEntity(l).Location())
	return 1
}

func entitySetLocation(l *lua.State) int {
	e := checkEntity(l)
	e.SetLocation(mgl64.Vec3{lua.CheckNumber(l, 2), lua.CheckNumber(l, 3), lua.CheckNumber(l, 4)})
	return 0
}

func entitySetRotation(l *lua.State) int {
	e := checkEntity(l)
	e.SetRotationEuler(lua.CheckNumber(l, 2), lua.CheckNumber(l, 3), lua.CheckNumber(l, 4))
	return 0
}

func entitySetProperty(l *lua.State) int {
	e := checkEntity(l)
	key := lua.CheckString(l, 2)
	switch l.TypeOf(3) {
	case lua.TypeString:
		v, _ := l.ToString(3)
		e.SetCustomProperty(key, v)
	case lua.TypeNumber:
		v, _ := l.ToNumber(3)
		e.SetCustomProperty(key, v)
	case lua.TypeBoolean:
		e.SetCustomProperty(key, l.ToBoolean(3))
	default:
		lua.ArgumentError(l, 3, "property must be a string, number or boolean")
	}
	return 0
}

// batchHandle keeps the scene a batch was rendered from so writers can
// read instance ids and poses back.
type batchHandle struct {
	sc    *scene.Scene
	batch *render.Batch
}

var batchMethods = []lua.RegistryFunction{
	{Name: "frames", Function: func(l *lua.State) int {
		l.PushInteger(checkBatch(l).batch.FrameCount())
		return 1
	}},
}

func writerHDF5(l *lua.State) int {
	b := checkBatchAt(l, 1)
	lua.CheckType(l, 2, lua.TypeTable)
	err := hdf5.Write(b.batch, hdf5.Options{
		Dir:    requireStringField(l, 2, "dir"),
		Append: boolField(l, 2, "append"),
	})
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func writerCoco(l *lua.State) int {
	b := checkBatchAt(l, 1)
	lua.CheckType(l, 2, lua.TypeTable)
	err := coco.Write(b.sc, b.batch, coco.Options{
		Dir:    requireStringField(l, 2, "dir"),
		Append: boolField(l, 2, "append"),
	})
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func writerBop(l *lua.State) int {
	b := checkBatchAt(l, 1)
	lua.CheckType(l, 2, lua.TypeTable)
	err := bop.Write(b.sc, b.batch, bop.Options{
		Dir:        requireStringField(l, 2, "dir"),
		Dataset:    requireStringField(l, 2, "dataset"),
		Append:     boolField(l, 2, "append"),
		ChunkSize:  intField(l, 2, "chunk_size", 0),
		DepthScale: numberField(l, 2, "depth_scale", 0),
	})
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	return 0
}

func checkScene(l *lua.State) *sceneHandle {
	if h, ok := lua.CheckUserData(l, 1, sceneTypeName).(*sceneHandle); ok && h != nil {
		return h
	}
	lua.ArgumentError(l, 1, "scene expected")
	return nil
}

func checkEntity(l *lua.State) *scene.Entity {
	if e, ok := lua.CheckUserData(l, 1, entityTypeName).(*scene.Entity); ok && e != nil {
		return e
	}
	lua.ArgumentError(l, 1, "entity expected")
	return nil
}

func checkBatch(l *lua.State) *batchHandle {
	return checkBatchAt(l, 1)
}

func checkBatchAt(l *lua.State, index int) *batchHandle {
	if b, ok := lua.CheckUserData(l, index, batchTypeName).(*batchHandle); ok && b != nil {
		return b
	}
	lua.ArgumentError(l, index, "render batch expected")
	return nil
}

func pushEntity(l *lua.State, e *scene.Entity) {
	l.PushUserData(e)
	lua.SetMetaTableNamed(l, entityTypeName)
}

func pushVec3(l *lua.State, v mgl64.Vec3) {
	l.NewTable()
	for i := 0; i < 3; i++ {
		l.PushNumber(v[i])
		l.RawSetInt(-2, i+1)
	}
}

func toVec3(l *lua.State, index int) (mgl64.Vec3, bool) {
	if l.TypeOf(index) != lua.TypeTable {
		return mgl64.Vec3{}, false
	}
	index = l.AbsIndex(index)
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		l.RawGetInt(index, i+1)
		n, ok := l.ToNumber(-1)
		l.Pop(1)
		if !ok {
			return mgl64.Vec3{}, false
		}
		v[i] = n
	}
	return v, true
}

func checkVec3(l *lua.State, index int) mgl64.Vec3 {
	v, ok := toVec3(l, index)
	if !ok {
		lua.ArgumentError(l, index, "expected a {x, y, z} table")
	}
	return v
}

func vec3Field(l *lua.State, index int, name string) (mgl64.Vec3, bool) {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	if l.IsNoneOrNil(-1) {
		return mgl64.Vec3{}, false
	}
	v, ok := toVec3(l, -1)
	if !ok {
		lua.Errorf(l, "field %q must be a {x, y, z} table", name)
	}
	return v, true
}

func requireVec3Field(l *lua.State, index int, name string) mgl64.Vec3 {
	v, ok := vec3Field(l, index, name)
	if !ok {
		lua.Errorf(l, "missing field %q", name)
	}
	return v
}

func numberField(l *lua.State, index int, name string, def float64) float64 {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	if l.IsNoneOrNil(-1) {
		return def
	}
	n, ok := l.ToNumber(-1)
	if !ok {
		lua.Errorf(l, "field %q must be a number", name)
	}
	return n
}

func intField(l *lua.State, index int, name string, def int) int {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	if l.IsNoneOrNil(-1) {
		return def
	}
	n, ok := l.ToInteger(-1)
	if !ok {
		lua.Errorf(l, "field %q must be an integer", name)
	}
	return n
}

func boolField(l *lua.State, index int, name string) bool {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	return l.ToBoolean(-1)
}

func stringField(l *lua.State, index int, name, def string) string {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	if l.IsNoneOrNil(-1) {
		return def
	}
	s, ok := l.ToString(-1)
	if !ok {
		lua.Errorf(l, "field %q must be a string", name)
	}
	return s
}

func requireStringField(l *lua.State, index int, name string) string {
	s := stringField(l, index, name, "")
	if s == "" {
		lua.Errorf(l, "missing field %q", name)
	}
	return s
}

func entityListField(l *lua.State, index int, name string) []*scene.Entity {
	index = l.AbsIndex(index)
	l.Field(index, name)
	defer l.Pop(1)
	if l.IsNoneOrNil(-1) {
		return nil
	}
	if l.TypeOf(-1) != lua.TypeTable {
		lua.Errorf(l, "field %q must be a list of entities", name)
	}
	list := l.AbsIndex(-1)
	n := l.RawLength(list)
	entities := make([]*scene.Entity, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(list, i)
		e, ok := l.ToUserData(-1).(*scene.Entity)
		l.Pop(1)
		if !ok || e == nil {
			lua.Errorf(l, "field %q holds a non-entity at index %d", name, i)
		}
		entities = append(entities, e)
	}
	return entities
}

func stringList(l *lua.State, index int) []string {
	index = l.AbsIndex(index)
	n := l.RawLength(index)
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(index, i)
		s, ok := l.ToString(-1)
		l.Pop(1)
		if !ok {
			lua.Errorf(l, "expected a list of strings")
		}
		out = append(out, s)
	}
	return out
}
