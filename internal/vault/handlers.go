// Package vault wires the token cache, user store, object store adapter,
// and request validator into the HTTP surface described by the route
// table: error envelopes, auth/CORS/recovery/metrics middleware, and the
// handlers themselves.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"filevault/internal/auth"
	"filevault/internal/objectstore"
	"filevault/internal/schema"
	"filevault/internal/users"
	"filevault/pkg/metrics"
)

// favicon is a small embedded SVG served at /favicon.ico so the browser tab
// for a bare API doesn't spam 404s in the server log.
const favicon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16"><rect width="16" height="16" rx="3" fill="#2b6cb0"/><path d="M4 8h8M8 4v8" stroke="#fff" stroke-width="1.5"/></svg>`

// link is one HATEOAS link entry.
type link struct {
	HREF string `json:"href,omitempty"`
	Rel  string `json:"rel,omitempty"`
}

// Server bundles every component a route handler needs and exposes the
// routes as a mountable http.Handler.
type Server struct {
	Tokens    *auth.TokenCache
	Minter    *auth.TokenMinter
	Users     *users.Store
	Objects   *objectstore.Adapter
	Validator *schema.Validator
	Metrics   *metrics.VaultMetrics
	CORS      CORSConfig
}

// Handler builds the fully wrapped HTTP handler: CORS, panic recovery, and
// metrics instrumentation around a mux carrying every route the vault exposes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", wrap(s.handleRoot))
	mux.HandleFunc("/favicon.ico", wrap(s.handleFavicon))
	mux.HandleFunc("/auth/request-challenge", wrap(s.handleRequestChallenge))
	mux.HandleFunc("/auth/answer-challenge", wrap(s.handleAnswerChallenge))
	mux.HandleFunc("/files/request-upload-url", wrap(AuthMiddleware(s.Tokens, s.handleRequestUploadURL)))
	mux.HandleFunc("/files/", wrap(AuthMiddleware(s.Tokens, s.handleFiles)))
	mux.HandleFunc("/users/", wrap(s.handleUsersStub))

	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = withRecover(handler)
	if s.Metrics != nil {
		handler = withMetrics(s.Metrics, handler)
	}
	handler = withCORS(s.CORS, handler)
	return handler
}

// recordAuthOutcome tallies a challenge/answer attempt and refreshes the
// active-token gauge from the cache's own count, so the gauge never drifts
// out of sync with what TokenCache actually holds.
func (s *Server) recordAuthOutcome(outcome string) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
	s.Metrics.ActiveTokens.Set(float64(s.Tokens.Len()))
}

func (s *Server) recordObjectStoreOp(operation string, err error) {
	if s.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.Metrics.ObjectStoreOpsTotal.WithLabelValues(operation, status).Inc()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) *VaultError {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return UnexpectedError()
	}
	return nil
}

// handleRoot serves GET / — the HATEOAS entry point advertising the two
// unauthenticated starting operations.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) *VaultError {
	if r.URL.Path != "/" {
		// ServeMux routes every unmatched path here via the "/" catch-all
		// pattern: a GET to an unknown path is Not Found, anything else is
		// Method Not Allowed against a route that only ever accepted GET.
		if r.Method != http.MethodGet {
			return MethodNotAllowed()
		}
		return NotFound()
	}
	if r.Method != http.MethodGet {
		return MethodNotAllowed()
	}

	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": http.StatusOK,
		"links": map[string]link{
			"request_auth_challenge": {HREF: "/auth/request-challenge", Rel: "GET"},
			"create_user":            {HREF: "/users/", Rel: "GET"},
		},
	})
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) *VaultError {
	if r.Method != http.MethodGet {
		return MethodNotAllowed()
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(favicon)) //nolint:errcheck
	return nil
}

// handleRequestChallenge serves GET /auth/request-challenge?username=U.
func (s *Server) handleRequestChallenge(w http.ResponseWriter, r *http.Request) *VaultError {
	if r.Method != http.MethodGet {
		return MethodNotAllowed()
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		return FieldRequired("username")
	}

	rec, err := s.Users.FindByUsername(r.Context(), username)
	if err != nil {
		return DatabaseError(err)
	}
	if rec == nil {
		return UserDoesNotExist()
	}

	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  http.StatusOK,
		"content": map[string]string{"challenge": rec.Challenge},
		"links": map[string]link{
			"answer_auth_challenge": {HREF: "/auth/answer-challenge", Rel: "POST"},
			"create_user":           {HREF: "/users/", Rel: "GET"},
		},
	})
}

type answerChallengeRequest struct {
	Username string `json:"username"`
	Answer   string `json:"answer"`
}

// maxAnswerChallengeBodyBytes caps the request body before it ever reaches
// the JSON Schema validator.
const maxAnswerChallengeBodyBytes = 512

// handleAnswerChallenge serves POST /auth/answer-challenge.
func (s *Server) handleAnswerChallenge(w http.ResponseWriter, r *http.Request) *VaultError {
	if r.Method != http.MethodPost {
		return MethodNotAllowed()
	}

	body, verr := readBody(w, r, maxAnswerChallengeBodyBytes)
	if verr != nil {
		return verr
	}
	if err := s.Validator.Validate(schema.AnswerChallenge, body); err != nil {
		return GenericBadRequest(err.Error())
	}

	var req answerChallengeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GenericBadRequest(err.Error())
	}

	rec, err := s.Users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		return DatabaseError(err)
	}
	if rec == nil {
		s.recordAuthOutcome("no_such_user")
		return UserDoesNotExist()
	}
	if req.Answer != rec.Answer {
		s.recordAuthOutcome("mismatch")
		return ChallengeMismatch()
	}

	token, err := s.Minter.Mint()
	if err != nil {
		return UnexpectedError()
	}
	s.Tokens.Insert(token, req.Username)
	s.recordAuthOutcome("success")

	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  http.StatusOK,
		"content": map[string]string{"token": token},
		"links": map[string]link{
			"files_list":         {HREF: "/files/", Rel: "GET"},
			"request_upload_url": {HREF: "/files/request-upload-url", Rel: "POST"},
		},
	})
}

type requestUploadURLRequest struct {
	Filename string `json:"filename"`
}

const maxRequestUploadURLBodyBytes = 1024

// handleRequestUploadURL serves POST /files/request-upload-url (authenticated).
func (s *Server) handleRequestUploadURL(w http.ResponseWriter, r *http.Request) *VaultError {
	if r.Method != http.MethodPost {
		return MethodNotAllowed()
	}

	username, ok := usernameFromContext(r.Context())
	if !ok {
		return Unauthorized("missing authentication context")
	}

	body, verr := readBody(w, r, maxRequestUploadURLBodyBytes)
	if verr != nil {
		return verr
	}
	if err := s.Validator.Validate(schema.RequestUploadURL, body); err != nil {
		return GenericBadRequest(err.Error())
	}

	var req requestUploadURLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GenericBadRequest(err.Error())
	}
	if req.Filename == "" {
		return FieldRequired("filename")
	}

	result, err := s.Objects.PostPolicy(r.Context(), username, req.Filename)
	s.recordObjectStoreOp("post_policy", err)
	if err != nil {
		return PolicyDataError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": http.StatusOK,
		"links": map[string]interface{}{
			"retrieve_url": link{HREF: result.RetrieveURL, Rel: "GET"},
			"upload_url": map[string]interface{}{
				"href":      result.UploadURL,
				"form_data": result.FormData,
				"rel":       "POST",
			},
		},
	})
}

// handleFiles dispatches GET /files/ (list) and DELETE /files/?filename=F
// (remove); both require authentication.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) *VaultError {
	switch r.Method {
	case http.MethodGet:
		return s.handleFilesList(w, r)
	case http.MethodDelete:
		return s.handleFilesDelete(w, r)
	default:
		return MethodNotAllowed()
	}
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) *VaultError {
	username, ok := usernameFromContext(r.Context())
	if !ok {
		return Unauthorized("missing authentication context")
	}

	files, err := s.Objects.List(r.Context(), username)
	s.recordObjectStoreOp("list", err)
	if err != nil {
		return ObjectStoreError(err)
	}

	entries := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		entries = append(entries, map[string]interface{}{
			"content": map[string]interface{}{
				"checksum": f.Checksum,
				"filename": f.Filename,
				"size":     f.Size,
				"url":      f.URL,
			},
			"links": map[string]link{
				"read":   {HREF: fmt.Sprintf("/files/?filename=%s", f.Filename), Rel: "GET"},
				"delete": {HREF: fmt.Sprintf("/files/?filename=%s", f.Filename), Rel: "DELETE"},
			},
		})
	}

	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  http.StatusOK,
		"content": entries,
	})
}

func (s *Server) handleFilesDelete(w http.ResponseWriter, r *http.Request) *VaultError {
	username, ok := usernameFromContext(r.Context())
	if !ok {
		return Unauthorized("missing authentication context")
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return FieldRequired("filename")
	}

	err := s.Objects.Remove(r.Context(), username, filename)
	s.recordObjectStoreOp("remove", err)
	if err != nil {
		return ObjectStoreError(err)
	}

	return writeJSON(w, http.StatusOK, map[string]interface{}{"status": http.StatusOK})
}

// handleUsersStub serves GET /users/ — advertised in HATEOAS links but never
// implemented by the system this vault replaces; see DESIGN.md's Open
// Question #2 for why this stays an explicit 500 rather than a 404.
func (s *Server) handleUsersStub(w http.ResponseWriter, r *http.Request) *VaultError {
	return UnexpectedError()
}

// readBody enforces a body size cap and surfaces a decode failure as the
// GenericBadRequest envelope rather than a bare Go error reaching the client.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, *VaultError) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, GenericBadRequest(fmt.Sprintf("request body exceeds %d bytes", limit))
		}
		return nil, GenericBadRequest(err.Error())
	}
	return body, nil
}
