package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/lexiqai/speech-translator/internal/audio"
	"github.com/lexiqai/speech-translator/internal/orchestrator"
)

const (
	rootMessage           = "🎙 Real-Time Speech Translator backend is running!"
	speechNotRecognized   = "Speech not recognized"
	multipartMemoryBudget = 8 << 20
)

// Language is one entry of the language picker
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedLanguages = func() []Language {
	codes := []string{"en", "hi", "mr", "pa", "bn", "ta", "te", "gu", "ml", "kn", "ja", "es", "fr", "de", "zh"}
	namer := display.English.Languages()

	langs := make([]Language, 0, len(codes))
	for _, code := range codes {
		tag := language.MustParse(code)
		langs = append(langs, Language{Code: code, Name: namer.Name(tag)})
	}
	return langs
}()

// Root reports that the backend is up
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

// Languages lists the languages offered to clients
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]Language{"languages": supportedLanguages})
}

// Translate handles POST /translate: multipart field "file" plus optional
// "input_lang" and "output_lang".
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	declared := header.Header.Get("Content-Type")
	if _, ok := audio.FormatFromMIME(declared); !ok {
		declared = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}

	req := orchestrator.Request{
		RequestID:  requestID(r),
		Audio:      data,
		Format:     audio.DetectFormat(data, declared, h.cfg.DefaultUploadFormat),
		InputLang:  formValue(r, "input_lang", h.cfg.DefaultInputLang),
		OutputLang: formValue(r, "output_lang", h.cfg.DefaultOutputLang),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.pipelineTimeout())
	defer cancel()

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		status, body := pipelineError(err)
		hlog.FromRequest(r).Debug().Err(err).Int("status", status).Msg("Translation failed")
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// pipelineError maps a pipeline failure onto the HTTP status and body
func pipelineError(err error) (int, map[string]string) {
	if orchestrator.KindOf(err) == orchestrator.KindUnrecognizedSpeech {
		return http.StatusBadRequest, map[string]string{"error": speechNotRecognized}
	}
	return http.StatusInternalServerError, map[string]string{"error": err.Error()}
}

func formValue(r *http.Request, key, fallback string) string {
	return orDefault(r.FormValue(key), fallback)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
