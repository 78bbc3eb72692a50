// Package script runs Lua pipeline scripts. A script builds a scene, lets
// the host settle and render it and hands the frames to the writers:
//
//	local sc = proc.scene("kitchen")
//	local objs = sc:load(proc.args[1])
//	sc:place{entities = objs, min = {-1, -1, 0}, max = {1, 1, 1}}
//	sc:camera_pose{location = sampler.shell({0, 0, 1}, 2, 3), look_at = {0, 0, 0}}
//	sc:settle{}
//	local batch = sc:render{outputs = {"depth", "instance_segmaps"}}
//	writers.hdf5(batch, {dir = proc.args[2]})
package script

import (
	"context"
	"log"

	"github.com/Shopify/go-lua"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/sampler"
	"github.com/procscene/procscene/scene"
)

// Runner owns the Lua state wiring and the engine handle scripts render
// through. One runner runs one script.
type Runner struct {
	engine host.Engine
	ctx    context.Context
	args   []string

	rnd       *sampler.Sampler
	lastScene *scene.Scene
}

func NewRunner(ctx context.Context, engine host.Engine, args []string) *Runner {
	return &Runner{engine: engine, ctx: ctx, args: args}
}

// Run executes the script file.
func (r *Runner) Run(path string) error {
	state := r.newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return errors.Wrapf(err, "Failed to load script %q", path)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return errors.Wrapf(err, "Script %q failed", path)
	}
	return nil
}

// RunSource executes script source directly, used by tests and the web ui.
func (r *Runner) RunSource(src string) error {
	state := r.newState()
	if err := lua.LoadString(state, src); err != nil {
		return errors.Wrapf(err, "Failed to load script")
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return errors.Wrapf(err, "Script failed")
	}
	return nil
}

func (r *Runner) newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerSceneType(state)
	registerEntityType(state)
	registerBatchType(state)
	registerProc(state, r)
	registerSampler(state, r)
	registerWriters(state)
	return state
}

// sampler returns the run's random source, seeded lazily so a script can
// call proc.set_seed before the first draw.
func (r *Runner) sampler() *sampler.Sampler {
	if r.rnd == nil {
		r.rnd = sampler.FromConfig()
	}
	return r.rnd
}

// ensureInitialized pushes the scene to the host before the first settle
// or render call touching it.
func (r *Runner) ensureInitialized(sc *scene.Scene) error {
	if r.lastScene == sc {
		return nil
	}
	if err := r.engine.Initialize(r.ctx, sc); err != nil {
		return err
	}
	log.Printf("[script] Scene %q pushed to host", sc.Name())
	r.lastScene = sc
	return nil
}
