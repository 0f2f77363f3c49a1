package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/invoker"
	"github.com/shaiso/megaflow/internal/telemetry"
)

const (
	maxRequestBody  = 4 << 20
	streamChunkSize = 4 << 10
)

// ChatCompletions обрабатывает chat-запрос.
// POST /v1/chat/completions, POST /v1/examples
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatCompletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		InvalidChatRequest(w, err)
		return
	}

	reply := h.chat.Handle(r.Context(), &req)

	if reply.IsStream() {
		h.writeStream(w, r, reply.Stream)
		return
	}

	JSON(w, http.StatusOK, reply.Response)
}

// writeStream копирует поток клиенту как есть, сбрасывая буфер после каждой порции.
// Поток закрывается при любом исходе, включая отключение клиента.
func (h *Handler) writeStream(w http.ResponseWriter, r *http.Request, stream *invoker.Stream) {
	defer stream.Close()

	logger := telemetry.FromContext(r.Context()).With("node", stream.Node())

	contentType := stream.ContentType()
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	buf := make([]byte, streamChunkSize)
	var written int64

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logger.Debug("client went away during stream", "error", werr, "bytes", written)
				return
			}
			written += int64(n)
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				logger.Debug("flush failed", "error", ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && r.Context().Err() == nil {
				logger.Warn("upstream stream failed", "error", err, "bytes", written)
			}
			return
		}
	}
}
