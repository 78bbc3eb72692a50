package webutils

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log"
	"net/http"

	"github.com/pkg/errors"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	io.Copy(w, in)
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteJsonFile(w http.ResponseWriter, v interface{}, fileName string) {
	if data, err := json.MarshalIndent(v, "", "  "); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		WriteFile(w, bytes.NewReader(data), fileName+".json")
	}
}

func WritePng(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("[web] Error encoding png response: %v", err)
	}
}

func ReadJsonBody(r *http.Request, v interface{}) error {
	if r.Method != http.MethodPost {
		return errors.Errorf("Invalid http method %q", r.Method)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal request body")
	}
	return nil
}

func WriteResult(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		log.Printf("Error when writing response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log.Printf("Error marshaling error '%v': %v", err, merr)
		return
	}
	log.Printf("HERR: %v", string(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	WriteResult(w, data)
}
