package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
)

// Remote drives a host application over its embedded scripting server.
// Scene state travels as JSON; rendered arrays stream back over a
// websocket as alternating header and binary payload messages.
type Remote struct {
	addr   string
	client *http.Client
	dialer *websocket.Dialer
	sc     *scene.Scene
}

func NewRemote(addr string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Remote{
		addr:   addr,
		client: &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
	}
}

func (r *Remote) post(ctx context.Context, path string, payload, response interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+r.addr+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "Failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "Host %q unreachable", r.addr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("Host returned %s for %s", resp.Status, path)
	}
	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return errors.Wrapf(err, "Failed to decode host response for %s", path)
		}
	}
	return nil
}

func (r *Remote) Initialize(ctx context.Context, sc *scene.Scene) error {
	if sc == nil {
		return errors.Errorf("No scene")
	}
	r.sc = sc
	log.Printf("[host] Pushing scene %q to %s", sc.Name(), r.addr)
	return r.post(ctx, "/api/scene", sceneToWire(sc), nil)
}

func (r *Remote) SettleRigidBodies(ctx context.Context, opts PhysicsOptions) (map[string]mgl64.Mat4, error) {
	if r.sc == nil {
		return nil, errors.Errorf("Engine not initialized")
	}
	var resp wireSettleResponse
	err := r.post(ctx, "/api/physics/settle", wireSettleRequest{
		MaxSimSeconds:  opts.MaxSimSeconds,
		CheckIntervals: opts.CheckIntervals,
		SubstepsPerSec: opts.SubstepsPerSec,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.Errorf("Host physics failed: %s", resp.Error)
	}

	moved := make(map[string]mgl64.Mat4, len(resp.Transforms))
	for name, flat := range resp.Transforms {
		e, err := r.sc.Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, "Host settled unknown entity")
		}
		m := mat4FromRowMajor(flat)
		e.SetTransform(m)
		moved[name] = m
	}
	log.Printf("[host] Solver settled %d entities", len(moved))
	return moved, nil
}

func (r *Remote) Render(ctx context.Context, req RenderRequest) (*render.Batch, error) {
	if r.sc == nil {
		return nil, errors.Errorf("Engine not initialized")
	}

	conn, httpResp, err := r.dialer.DialContext(ctx, "ws://"+r.addr+"/api/render", nil)
	if err != nil {
		if httpResp != nil {
			return nil, errors.Wrapf(err, "Render socket rejected with %s", httpResp.Status)
		}
		return nil, errors.Wrapf(err, "Failed to open render socket to %q", r.addr)
	}
	defer conn.Close()

	err = conn.WriteJSON(wireRenderRequest{
		FrameStart: req.FrameStart,
		FrameEnd:   req.FrameEnd,
		Outputs:    req.Outputs.Names(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to send render request")
	}

	batch := &render.Batch{}
	var current *render.Frame
	for {
		var header wireArrayHeader
		if err := conn.ReadJSON(&header); err != nil {
			return nil, errors.Wrapf(err, "Render stream broke")
		}
		if header.Error != "" {
			return nil, errors.Errorf("Host render failed: %s", header.Error)
		}
		if header.Done {
			break
		}

		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, errors.Wrapf(err, "Render stream broke reading %q", header.Name)
		}
		if messageType != websocket.BinaryMessage {
			return nil, errors.Errorf("Expected binary payload for %q, got message type %d", header.Name, messageType)
		}

		array, err := decodeWireArray(&header, payload)
		if err != nil {
			return nil, err
		}

		if current == nil || current.Index != header.Frame {
			if current != nil {
				if err := batch.Append(current); err != nil {
					return nil, err
				}
			}
			current = render.NewFrame(header.Frame)
		}
		if err := current.Add(array); err != nil {
			return nil, err
		}
	}
	if current != nil {
		if err := batch.Append(current); err != nil {
			return nil, err
		}
	}

	want := req.FrameEnd - req.FrameStart
	if batch.FrameCount() != want {
		return nil, errors.Errorf("Host delivered %d frames, expected %d", batch.FrameCount(), want)
	}
	log.Printf("[host] Received %d rendered frames", batch.FrameCount())
	return batch, nil
}

func (r *Remote) Close() error { return nil }

// decodeWireArray turns a little-endian payload into a typed array.
func decodeWireArray(header *wireArrayHeader, payload []byte) (*render.Array, error) {
	a := &render.Array{Name: header.Name, DType: header.DType, Shape: header.Shape}
	n := a.Elements()

	switch header.DType {
	case render.Uint8:
		if len(payload) != n {
			return nil, errors.Errorf("Output %q payload is %d bytes, want %d", header.Name, len(payload), n)
		}
		data := make([]uint8, n)
		copy(data, payload)
		a.Data = data
	case render.Uint16:
		if len(payload) != n*2 {
			return nil, errors.Errorf("Output %q payload is %d bytes, want %d", header.Name, len(payload), n*2)
		}
		data := make([]uint16, n)
		for i := range data {
			data[i] = binary.LittleEndian.Uint16(payload[i*2:])
		}
		a.Data = data
	case render.Float32:
		if len(payload) != n*4 {
			return nil, errors.Errorf("Output %q payload is %d bytes, want %d", header.Name, len(payload), n*4)
		}
		data := make([]float32, n)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		a.Data = data
	default:
		return nil, errors.Errorf("Output %q has unknown dtype %q", header.Name, header.DType)
	}

	if err := a.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Host sent broken array")
	}
	return a, nil
}

var _ Engine = (*Remote)(nil)
var _ Engine = (*DryRun)(nil)

// EncodeWireArray is the inverse of the render stream decoding, used by
// tests that fake a host application.
func EncodeWireArray(frame int, a *render.Array) (headerJSON []byte, payload []byte, err error) {
	if err := a.Validate(); err != nil {
		return nil, nil, err
	}
	switch data := a.Data.(type) {
	case []uint8:
		payload = data
	case []uint16:
		payload = make([]byte, len(data)*2)
		for i, v := range data {
			binary.LittleEndian.PutUint16(payload[i*2:], v)
		}
	case []float32:
		payload = make([]byte, len(data)*4)
		for i, v := range data {
			binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
		}
	default:
		return nil, nil, errors.Errorf("Unsupported data type %T", a.Data)
	}
	headerJSON, err = json.Marshal(&wireArrayHeader{Frame: frame, Name: a.Name, DType: a.DType, Shape: a.Shape})
	if err != nil {
		return nil, nil, err
	}
	return headerJSON, payload, nil
}

// DoneHeader terminates a render stream.
func DoneHeader() []byte {
	data, _ := json.Marshal(&wireArrayHeader{Done: true})
	return data
}

// ErrorHeader aborts a render stream with a host error message.
func ErrorHeader(message string) []byte {
	data, _ := json.Marshal(&wireArrayHeader{Error: message})
	return data
}
