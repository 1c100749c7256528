// Package api serves evaluation workbooks over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/models"
	"github.com/ukaji3/evalsheet-go/pkg/evalsheet/workbook"
)

// ContentTypeXLSM is the media type of macro-enabled workbooks.
const ContentTypeXLSM = "application/vnd.ms-excel.sheet.macroEnabled.12"

const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every non-200 response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Server generates workbooks from POSTed evaluations.
type Server struct {
	// Template is the workbook every request fills.
	Template string
	// TempDir receives the per-request input and output files.
	TempDir string
	// Options configures generation. Strict validation is always applied.
	Options evalsheet.Options

	log *logrus.Entry
	// mu serialises builds on backends that drive a single Excel instance.
	mu sync.Mutex
}

// NewServer creates a new Server.
func NewServer(template, tempDir string, opts evalsheet.Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	opts.Strict = true
	opts.RequirePeriod = true
	return &Server{
		Template: template,
		TempDir:  tempDir,
		Options:  opts,
		log:      log.WithField("component", "api"),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generar", s.handleGenerate)
	return mux
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Datos inválidos", map[string]any{"formErrors": []string{err.Error()}})
		return
	}
	body, err := evalsheet.ParseInput(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Datos inválidos", map[string]any{"formErrors": []string{err.Error()}})
		return
	}
	if err := evalsheet.Validate(body, true); err != nil {
		var verr *evalsheet.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Datos inválidos", map[string]any{"fieldErrors": verr.Issues})
			return
		}
		writeError(w, http.StatusBadRequest, "Datos inválidos", err.Error())
		return
	}

	id := uuid.NewString()
	inputPath := filepath.Join(s.TempDir, fmt.Sprintf("input_%s.json", id))
	outputPath := filepath.Join(s.TempDir, fmt.Sprintf("output_%s.xlsm", id))
	log := s.log.WithField("request", id)
	defer cleanup(log, inputPath, outputPath)

	data, err := s.generate(r, body, inputPath, outputPath)
	if err != nil {
		log.WithError(err).Error("failed to generate workbook")
		writeError(w, http.StatusInternalServerError, "Error al generar el archivo", err.Error())
		return
	}

	filename := evalsheet.DownloadName(body.Asignatura, body.Safis)
	w.Header().Set("Content-Type", ContentTypeXLSM)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

// generate writes the request to inputPath, runs the pipeline and returns
// the produced workbook.
func (s *Server) generate(r *http.Request, ev *models.Evaluation, inputPath, outputPath string) ([]byte, error) {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return nil, err
	}
	input, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, err
	}

	if s.Options.Backend != workbook.BackendExcelize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	opts := s.Options
	opts.Format = workbook.FormatXLSM
	if err := evalsheet.Generate(r.Context(), inputPath, s.Template, outputPath, opts); err != nil {
		return nil, err
	}
	return os.ReadFile(outputPath)
}

func cleanup(log *logrus.Entry, paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", p).Warn("failed to remove temp file")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details})
}
