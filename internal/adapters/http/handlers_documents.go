package httpadapter

import (
	"errors"
	"net/http"
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessages(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		writeErrorMessages(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.services.Documents.Upload(
		r.Context(),
		scope,
		r.PathValue("projectID"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.services.Documents.Delete(r.Context(), scope, r.PathValue("documentID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (rt *Router) restoreDocument(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Documents.Restore(r.Context(), scope, r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, doc)
}
