// Package host is the boundary to the 3D application that owns the scene
// graph, the renderer and the rigid body solver. The pipeline only
// marshals scene state across this boundary and collects arrays back.
package host

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
)

// PhysicsOptions are forwarded to the host solver untouched.
type PhysicsOptions struct {
	MaxSimSeconds  float64
	CheckIntervals float64
	SubstepsPerSec int
}

// RenderRequest asks for the key frame range [FrameStart, FrameEnd) with
// the given output set.
type RenderRequest struct {
	FrameStart int
	FrameEnd   int
	Outputs    render.Outputs
}

// Engine is the host application seen from the pipeline. All calls block
// (the pipeline is synchronous by design); ctx is for external
// cancellation only.
type Engine interface {
	// Initialize pushes the scene mirror to the host.
	Initialize(ctx context.Context, sc *scene.Scene) error
	// SettleRigidBodies runs the host solver and applies the settled
	// transforms back onto the scene entities. The returned map reports
	// what moved.
	SettleRigidBodies(ctx context.Context, opts PhysicsOptions) (map[string]mgl64.Mat4, error)
	// Render produces one frame per key frame in the requested range.
	Render(ctx context.Context, req RenderRequest) (*render.Batch, error)
	Close() error
}
