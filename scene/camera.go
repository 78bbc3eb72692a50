package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/utils"
)

// Camera holds pinhole intrinsics and the cam2world pose appended for each
// key frame. Appending a pose is what advances the frame range of a run.
type Camera struct {
	k      mgl64.Mat3
	width  int
	height int
	poses  []mgl64.Mat4
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		k:      utils.IntrinsicsFromFOV(mgl64.DegToRad(50), width, height),
		width:  width,
		height: height,
	}
}

func (c *Camera) SetIntrinsics(fx, fy, cx, cy float64) error {
	if fx <= 0 || fy <= 0 {
		return errors.Errorf("Invalid focal lengths (%v, %v)", fx, fy)
	}
	c.k = utils.Intrinsics(fx, fy, cx, cy)
	return nil
}

func (c *Camera) SetIntrinsicsFromFOV(fovX float64) error {
	if fovX <= 0 {
		return errors.Errorf("Invalid field of view %v", fovX)
	}
	c.k = utils.IntrinsicsFromFOV(fovX, c.width, c.height)
	return nil
}

func (c *Camera) K() mgl64.Mat3 { return c.k }

func (c *Camera) Resolution() (w, h int) { return c.width, c.height }

// AddPose appends a cam2world pose and returns the key frame index it was
// recorded at.
func (c *Camera) AddPose(cam2world mgl64.Mat4) int {
	c.poses = append(c.poses, cam2world)
	return len(c.poses) - 1
}

func (c *Camera) PoseCount() int { return len(c.poses) }

func (c *Camera) Pose(frame int) (mgl64.Mat4, error) {
	if frame < 0 || frame >= len(c.poses) {
		return mgl64.Mat4{}, errors.Errorf("Key frame %d out of range [0, %d)", frame, len(c.poses))
	}
	return c.poses[frame], nil
}

// World2CV returns the world to camera transform for a frame in the
// computer vision convention the annotation writers expect.
func (c *Camera) World2CV(frame int) (mgl64.Mat4, error) {
	pose, err := c.Pose(frame)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	return utils.CamToCV(pose).Inv(), nil
}
