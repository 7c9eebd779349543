package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/docrelay/docpipe"
	"github.com/hazyhaar/docrelay/horosafe"
	"github.com/hazyhaar/docrelay/shield"
)

// maxFieldBytes bounds the small multipart text fields such as mimeType.
const maxFieldBytes = 1024

var errMissingFile = errors.New("missing file")

// handleExtract accepts either a multipart upload with a "file" part, where
// an optional "mimeType" field overrides the part's own Content-Type, or a
// raw body whose type is given in x-mime-type.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	logger := shield.GetLogger(r.Context())

	payload, mediaType, err := s.readUpload(r)
	switch {
	case errors.Is(err, errMissingFile):
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	case errors.Is(err, horosafe.ErrTooLarge):
		s.metrics.RecordExtraction("", docpipe.KindPayloadTooLarge.String(), 0, 0)
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	case err != nil:
		logger.Warn("read upload", "error", err)
		writeError(w, http.StatusBadRequest, "No data")
		return
	}

	start := time.Now()
	res, err := s.pipe.Extract(r.Context(), payload, mediaType)
	elapsed := time.Since(start)

	if err != nil {
		kind := docpipe.KindOf(err)
		format, _ := s.pipe.Classify(mediaType)
		s.metrics.RecordExtraction(string(format), kind.String(), len(payload), elapsed)
		writeExtractError(w, err, kind)
		if kind == docpipe.KindDecodeFailed || kind == docpipe.KindInternal {
			logger.Error("extraction failed", "kind", kind.String(), "media_type", mediaType, "bytes", len(payload), "error", err)
		}
		return
	}

	s.metrics.RecordExtraction(string(res.Format), "ok", len(payload), elapsed)
	logger.Info("extracted", "format", res.Format, "bytes", len(payload), "length", res.Length, "duration_ms", elapsed.Milliseconds())
	writeJSON(w, http.StatusOK, map[string]any{
		"text":   res.Text,
		"length": res.Length,
	})
}

func writeExtractError(w http.ResponseWriter, err error, kind docpipe.ErrorKind) {
	switch kind {
	case docpipe.KindPayloadTooLarge:
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	case docpipe.KindMissingPayload:
		writeError(w, http.StatusBadRequest, "No data")
	case docpipe.KindUnsupportedMediaType:
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		detail := err.Error()
		var de *docpipe.Error
		if errors.As(err, &de) && de.Err != nil {
			detail = de.Err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "Extraction failed",
			"detail": detail,
			"kind":   kind.String(),
		})
	}
}

// readUpload returns the payload and its declared media type. Payload reads
// stop one byte past the pipeline ceiling.
func (s *Server) readUpload(r *http.Request) ([]byte, string, error) {
	limit := s.pipe.MaxPayloadSize()

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		data, err := horosafe.LimitedReadAll(r.Body, limit)
		if err != nil {
			return nil, "", err
		}
		return data, r.Header.Get("X-Mime-Type"), nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", err
	}

	var (
		payload     []byte
		haveFile    bool
		partType    string
		override    string
		hasOverride bool
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
		switch part.FormName() {
		case "file":
			if haveFile {
				break
			}
			haveFile = true
			partType = part.Header.Get("Content-Type")
			payload, err = horosafe.LimitedReadAll(part, limit)
		case "mimeType":
			var v []byte
			v, err = horosafe.LimitedReadAll(part, maxFieldBytes)
			override, hasOverride = strings.TrimSpace(string(v)), true
		}
		part.Close()
		if err != nil {
			return nil, "", err
		}
	}

	if !haveFile {
		return nil, "", errMissingFile
	}
	if hasOverride && override != "" {
		return payload, override, nil
	}
	return payload, partType, nil
}
