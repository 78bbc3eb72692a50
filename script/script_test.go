package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/procscene/procscene/config"
	"github.com/procscene/procscene/host"
)

const testOBJ = `o cube
v -0.5 -0.5 0.0
v 0.5 -0.5 0.0
v 0.5 0.5 0.0
v -0.5 0.5 0.0
f 1 2 3
f 1 3 4
`

func writeAsset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cube.obj")
	if err := os.WriteFile(path, []byte(testOBJ), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(args ...string) *Runner {
	return NewRunner(context.Background(), host.NewDryRun(), args)
}

func TestRunSourcePipeline(t *testing.T) {
	if err := config.SetResolution(16, 12); err != nil {
		t.Fatal(err)
	}
	asset := writeAsset(t)
	out := t.TempDir()

	r := newTestRunner(asset, out)
	err := r.RunSource(`
		local sc = proc.scene("pipeline_test")
		local objs = sc:load(proc.args[1])
		if #objs ~= 1 then error("expected one entity") end
		objs[1]:set_property("category_id", 3)
		objs[1]:set_location(0, 0, 0)
		sc:camera_pose{location = {0, -3, 1}, look_at = {0, 0, 0}}
		sc:camera_pose{location = {1, -3, 1}, look_at = {0, 0, 0}}
		local batch = sc:render{outputs = {"depth", "instance_segmaps"}}
		if batch:frames() ~= 2 then error("expected two frames") end
		writers.coco(batch, {dir = proc.args[2]})
	`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "coco_annotations.json")); err != nil {
		t.Errorf("annotations missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "images", "000000.png")); err != nil {
		t.Errorf("first image missing: %v", err)
	}
}

func TestArgsForwarded(t *testing.T) {
	r := newTestRunner("alpha", "beta")
	err := r.RunSource(`
		if proc.args[1] ~= "alpha" then error("bad arg 1") end
		if proc.args[2] ~= "beta" then error("bad arg 2") end
		if proc.args[3] ~= nil then error("stray arg") end
	`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestScriptErrorPropagates(t *testing.T) {
	r := newTestRunner()
	err := r.RunSource(`error("boom")`)
	if err == nil {
		t.Fatal("failing script reported success")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("script error lost: %v", err)
	}
}

func TestRenderWithoutPosesFails(t *testing.T) {
	r := newTestRunner()
	err := r.RunSource(`
		local sc = proc.scene("empty")
		sc:render{}
	`)
	if err == nil {
		t.Fatal("render without camera poses accepted")
	}
	if !strings.Contains(err.Error(), "camera poses") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUnknownOutputFails(t *testing.T) {
	asset := writeAsset(t)
	r := newTestRunner(asset)
	err := r.RunSource(`
		local sc = proc.scene("bad_output")
		sc:load(proc.args[1])
		sc:camera_pose{location = {0, -3, 1}}
		sc:render{outputs = {"albedo"}}
	`)
	if err == nil {
		t.Fatal("unknown output name accepted")
	}
}

func TestPlacementKeepsEntitiesApart(t *testing.T) {
	asset := writeAsset(t)
	r := newTestRunner(asset)
	err := r.RunSource(`
		proc.set_seed(7)
		local sc = proc.scene("placement")
		local a = sc:load(proc.args[1])
		local b = sc:load(proc.args[1])
		sc:place{
			entities = {a[1], b[1]},
			min = {-5, -5, 0}, max = {5, 5, 2},
			random_rotation = true,
		}
		local la = a[1]:location()
		local lb = b[1]:location()
		if la[1] == lb[1] and la[2] == lb[2] and la[3] == lb[3] then
			error("entities share a location")
		end
	`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestSamplerDeterministic(t *testing.T) {
	// re-seeding must reproduce the draw exactly
	err := newTestRunner().RunSource(`
		proc.set_seed(1234)
		local p1 = sampler.shell({0, 0, 0}, 2, 3)
		local q1 = sampler.range(-1, 1)
		proc.set_seed(1234)
		local p2 = sampler.shell({0, 0, 0}, 2, 3)
		local q2 = sampler.range(-1, 1)
		if p1[1] ~= p2[1] or p1[2] ~= p2[2] or p1[3] ~= p2[3] then
			error("shell draw not reproducible")
		end
		if q1 ~= q2 then error("range draw not reproducible") end
		local r = math.sqrt(p1[1]^2 + p1[2]^2 + p1[3]^2)
		if r < 2 or r > 3 then error("shell draw outside radius bounds") end
	`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.lua")
	if err := os.WriteFile(path, []byte(`proc.set_seed(1)`), 0666); err != nil {
		t.Fatal(err)
	}
	if err := newTestRunner().Run(path); err != nil {
		t.Fatal(err)
	}
	if err := newTestRunner().Run(filepath.Join(dir, "missing.lua")); err == nil {
		t.Error("missing script accepted")
	}
}
