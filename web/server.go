// Package web serves the preview ui: scene inspection, script runs and
// rendered frame previews over http.
package web

import (
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/procscene/procscene/host"
	"github.com/procscene/procscene/render"
	"github.com/procscene/procscene/scene"
	"github.com/procscene/procscene/status"
)

// EngineFactory builds a fresh engine per script run.
type EngineFactory func() host.Engine

var (
	serverEngine EngineFactory

	stateMu   sync.Mutex
	lastScene *scene.Scene
	lastBatch *render.Batch
	running   bool
)

func StartServer(addr string, factory EngineFactory, webPath string) error {
	serverEngine = factory

	// pipeline logs go to the console and to every /ws/log client
	log.SetOutput(io.MultiWriter(os.Stderr, status.LogWriter()))

	r := mux.NewRouter()
	r.HandleFunc("/json/scene", HandlerAjaxScene)
	r.HandleFunc("/json/status", HandlerAjaxStatus)
	r.HandleFunc("/dump/scene.glb", HandlerDumpSceneGLB)
	r.HandleFunc("/dump/scene.json", HandlerDumpSceneJSON)
	r.HandleFunc("/dump/debug", HandlerDumpDebug)
	r.HandleFunc("/preview/{frame}/{output}", HandlerPreviewFrame)
	r.HandleFunc("/run", HandlerRunScript)
	r.HandleFunc("/ws/log", HandlerLogStream)

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))

	h := handlers.RecoveryHandler()(r)
	h = handlers.LoggingHandler(os.Stderr, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}

func setLastScene(sc *scene.Scene) {
	stateMu.Lock()
	defer stateMu.Unlock()
	lastScene = sc
	lastBatch = nil
}

func setLastBatch(b *render.Batch) {
	stateMu.Lock()
	defer stateMu.Unlock()
	lastBatch = b
}

func currentState() (*scene.Scene, *render.Batch) {
	stateMu.Lock()
	defer stateMu.Unlock()
	return lastScene, lastBatch
}

func setRunning(v bool) bool {
	stateMu.Lock()
	defer stateMu.Unlock()
	if v && running {
		return false
	}
	running = v
	return true
}

func isRunning() bool {
	stateMu.Lock()
	defer stateMu.Unlock()
	return running
}
