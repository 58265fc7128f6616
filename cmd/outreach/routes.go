package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/outreach/auth"
	"github.com/hazyhaar/outreach/kit"
	"github.com/hazyhaar/outreach/outreach"
	"github.com/hazyhaar/outreach/shield"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	maxImportBody = 5 << 20

	publicRequestsPerMinute = 60
	loginAttemptsPerMinute  = 5
)

type server struct {
	svc          *outreach.Service
	mcp          *mcp.Server
	secret       []byte
	passwordHash string
	logger       *slog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(auth.Middleware(s.secret))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public opt-out: anyone who was contacted may suppress their domain.
	r.Route("/api/v1/recruitment", func(r chi.Router) {
		r.Use(shield.RateLimit(s.svc.Limiter(), "public", publicRequestsPerMinute, time.Minute))
		r.Post("/opt-out", s.handlePublicOptOut)
		r.Get("/opt-out/check", s.handleCheckOptOut)
	})

	r.With(shield.RateLimit(s.svc.Limiter(), "login", loginAttemptsPerMinute, time.Minute)).
		Post("/api/v1/admin/login", auth.LoginHandler(auth.LoginConfig{
			PasswordHash: s.passwordHash,
			Secret:       s.secret,
			Logger:       s.logger,
		}))
	r.Post("/api/v1/admin/logout", auth.LogoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)

		r.Route("/api/v1/admin/recruitment", func(r chi.Router) {
			r.Post("/discover", s.handleDiscover)
			r.Post("/import", s.handleImport)
			r.Post("/qualify", s.handleQualify)
			r.Post("/pipeline", s.handlePipeline)
			r.Post("/preview", s.handlePreview)
			r.Post("/execute", s.handleExecute)
			r.Post("/batch", s.handleBatch)
			r.Post("/targets/{id}/recruit", s.handleRecruit)
			r.Get("/status", s.handleStatus)

			r.Get("/opt-outs", s.handleListOptOuts)
			r.Post("/opt-outs", s.handleCreateOptOut)
			r.Delete("/opt-outs/{domain}", s.handleRemoveOptOut)
		})

		if s.mcp != nil {
			h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
			r.Handle("/mcp", h)
		}
	})
	return r
}

func (s *server) handlePublicOptOut(w http.ResponseWriter, r *http.Request) {
	var in outreach.OptOutInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.PublicOptOut(r.Context(), shield.ExtractIP(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleCheckOptOut(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.CheckOptOut(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Discover(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ImportCSV(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleQualify(w http.ResponseWriter, r *http.Request) {
	var in outreach.QualifyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.Qualify(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": res, "count": len(res)})
}

func (s *server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var in outreach.PipelineInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.RunPipeline(r.Context(), in)
	if err != nil {
		if res != nil {
			s.writeErrorResult(w, r, err, res)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in outreach.TargetsInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.Preview(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": res, "count": len(res)})
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var in outreach.TargetsInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.Execute(r.Context(), in)
	if err != nil {
		if res != nil {
			s.writeErrorResult(w, r, err, res)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var in outreach.BatchInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.RunBatch(r.Context(), in)
	if err != nil {
		if res != nil {
			s.writeErrorResult(w, r, err, res)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleRecruit(w http.ResponseWriter, r *http.Request) {
	var opts outreach.RecruitOptions
	if !decodeJSON(w, r, &opts) {
		return
	}
	res, err := s.svc.RecruitTarget(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleListOptOuts(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ListOptOuts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"optOuts": res, "count": len(res)})
}

func (s *server) handleCreateOptOut(w http.ResponseWriter, r *http.Request) {
	var in outreach.OptOutInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := s.svc.CreateOptOut(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("outreach: opt-out added", "domain", res.Domain, "actor", kit.GetActor(r.Context()))
	writeJSON(w, http.StatusCreated, res)
}

func (s *server) handleRemoveOptOut(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if err := s.svc.RemoveOptOut(r.Context(), domain); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("outreach: opt-out removed", "domain", domain, "actor", kit.GetActor(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Helpers ---

type errorBody struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []outreach.FieldError `json:"details,omitempty"`
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// at its zero value so defaults apply.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": errorBody{Code: "VALIDATION_ERROR", Message: "Invalid request body"},
	})
	return false
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorResult(w, r, err, nil)
}

// writeErrorResult is writeError for runs a global cap stopped part way:
// the partial result, when not nil, goes back next to the error.
func (s *server) writeErrorResult(w http.ResponseWriter, r *http.Request, err error, result any) {
	se, ok := outreach.AsServiceError(err)
	if !ok {
		shield.GetLogger(r.Context()).Error("outreach: request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": errorBody{Code: "INTERNAL_ERROR", Message: "Internal server error"},
		})
		return
	}
	body := errorBody{Code: se.Code, Message: se.Message}
	var ve *outreach.ValidationError
	if errors.As(err, &ve) {
		body.Details = ve.Fields
	}
	var ra interface{ RetryAfterSeconds() int }
	if errors.As(err, &ra) {
		w.Header().Set("Retry-After", strconv.Itoa(ra.RetryAfterSeconds()))
	}
	resp := map[string]any{"error": body}
	if result != nil {
		resp["result"] = result
	}
	writeJSON(w, se.Status, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
