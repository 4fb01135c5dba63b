package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Myahse/Intranet-Djogana-sub000/internal/domain"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/repository"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/document"
	"github.com/Myahse/Intranet-Djogana-sub000/internal/service/user"
)

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.requireAdmin(r.withRateLimit("users", rateLimitUserWrite, rateWindowDefault, r.rateLimitKeyUser, r.handleUserCreate))(w, req)
	case http.MethodGet:
		r.requireAdmin(r.withRateLimit("users", rateLimitUserRead, rateWindowDefault, r.rateLimitKeyUser, r.handleUserList))(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleUserCreate(w http.ResponseWriter, req *http.Request) {
	var payload user.CreateInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := r.users.Create(req.Context(), payload)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "identifier already in use")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, userPayload(account))
}

func (r *Router) handleUserList(w http.ResponseWriter, req *http.Request) {
	accounts, err := r.users.List(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	payloads := make([]map[string]any, 0, len(accounts))
	for i := range accounts {
		payloads = append(payloads, userPayload(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": payloads})
}

func (r *Router) handleDirections(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.requireAdmin(r.withRateLimit("directions", rateLimitUserWrite, rateWindowDefault, r.rateLimitKeyUser, r.handleDirectionCreate))(w, req)
	case http.MethodGet:
		r.handlerAuthRate("directions", rateLimitUserRead, rateWindowDefault, r.handleDirectionList)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDirectionCreate(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	direction, err := r.documents.CreateDirection(req.Context(), payload.Name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "direction already exists")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, direction)
}

func (r *Router) handleDirectionList(w http.ResponseWriter, req *http.Request) {
	directions, err := r.documents.ListDirections(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list directions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"directions": directions})
}

func (r *Router) handleDirectionSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/directions/")
	parts := strings.Split(trimmed, "/")
	directionID := parts[0]
	if directionID == "" {
		r.notFound(w)
		return
	}
	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		direction, err := r.documents.GetDirection(req.Context(), directionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "could not load direction")
			return
		}
		writeJSON(w, http.StatusOK, direction)
		return
	}
	if len(parts) != 2 || parts[1] != "folders" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for folder route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			ParentID string `json:"parent_id"`
			Name     string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		folder, err := r.documents.CreateFolder(req.Context(), directionID, payload.ParentID, payload.Name, info.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, folder)
	case http.MethodGet:
		tree, err := r.documents.FolderTree(req.Context(), directionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "could not load folder tree")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"folders": tree})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleFolderSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/folders/")
	parts := strings.Split(trimmed, "/")
	folderID := parts[0]
	if folderID == "" || len(parts) != 2 || parts[1] != "documents" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for document route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload document.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		payload.FolderID = folderID
		doc, err := r.documents.CreateDocument(req.Context(), payload, info.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	case http.MethodGet:
		docs, err := r.documents.ListDocuments(req.Context(), folderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "could not list documents")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDocumentSubroutes(w http.ResponseWriter, req *http.Request) {
	documentID := strings.TrimPrefix(req.URL.Path, "/documents/")
	if documentID == "" || strings.Contains(documentID, "/") {
		r.notFound(w)
		return
	}
	if req.Method == http.MethodGet {
		doc, err := r.documents.GetDocument(req.Context(), documentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "could not load document")
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for document delete", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	actor := &domain.User{ID: info.UserID, Role: info.Role}
	if err := r.documents.DeleteDocument(req.Context(), documentID, actor); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			r.notFound(w)
		case errors.Is(err, document.ErrDeleteNotAllowed):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "could not delete document")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePushDevices registers and unregisters mobile push tokens for the
// authenticated user.
func (r *Router) handlePushDevices(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for push device route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var payload struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload.Token = strings.TrimSpace(payload.Token)
	if payload.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	switch req.Method {
	case http.MethodPost:
		device := &domain.PushDevice{
			UserID:    info.UserID,
			Token:     payload.Token,
			Platform:  strings.TrimSpace(payload.Platform),
			CreatedAt: time.Now().UTC(),
		}
		if err := r.pushDevices.UpsertPushDevice(req.Context(), device); err != nil {
			writeError(w, http.StatusInternalServerError, "could not register device")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	case http.MethodDelete:
		if err := r.pushDevices.DeletePushDevice(req.Context(), info.UserID, payload.Token); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.notFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "could not unregister device")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
	default:
		r.methodNotAllowed(w)
	}
}
