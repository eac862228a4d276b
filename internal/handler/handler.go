// Package handler exposes the order and product services over HTTP.
package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/ecommerce-orders/internal/wire"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, body wire.Error) {
	writeJSON(w, status, body.Encode)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeError(w, status, wire.Error{Message: msg})
}

// writeInternal logs err with the request context and hides it from the
// client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "internal server error")
}

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeBody reads a bounded request body and decodes it with fn. Failures
// are written as 400 and reported as false.
func decodeBody[T any](w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) (T, error)) (T, bool) {
	var zero T
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return zero, false
		}
		writeMessage(w, http.StatusBadRequest, "cannot read request body")
		return zero, false
	}
	if len(data) == 0 {
		writeMessage(w, http.StatusBadRequest, "request body is required")
		return zero, false
	}

	v, err := fn(jx.DecodeBytes(data))
	if err != nil {
		body := wire.Error{Message: "invalid request body"}
		var fe *wire.FieldError
		if errors.As(err, &fe) {
			body.Field = fe.Field
		}
		writeError(w, http.StatusBadRequest, body)
		return zero, false
	}
	return v, true
}
