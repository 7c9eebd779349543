package server

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/hazyhaar/docrelay/command"
	"github.com/hazyhaar/docrelay/kit"
	"github.com/hazyhaar/docrelay/shield"
)

// handleCommand interprets one chat line. It accepts JSON {"text", "from"}
// or the form fields a chat webhook posts (Body, From).
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var text, from string

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req struct {
			Text string `json:"text"`
			From string `json:"from"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		text, from = req.Text, req.From
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		text, from = r.PostForm.Get("Body"), r.PostForm.Get("From")
	}

	ctx := r.Context()
	if from != "" {
		ctx = kit.WithSender(ctx, from)
	}

	res := command.Interpret(text)
	kind := res.Command.Kind()
	s.metrics.RecordCommand(string(kind))
	shield.GetLogger(ctx).Info("command", "kind", kind, "sender", kit.GetSender(ctx), "request_id", kit.GetRequestID(ctx))

	writeJSON(w, http.StatusOK, res)
}
