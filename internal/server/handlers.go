package server

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/sheetblocks/pkg/buildinfo"
	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/export"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/match"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
)

// fileResponse is the body returned by upload, annotate and apply.
type fileResponse struct {
	FileID   string         `json:"file_id"`
	Filename string         `json:"filename"`
	Layout   []layout.Block `json:"layout"`
	Image    string         `json:"image"`
}

func newFileResponse(res *pipeline.FileResult) fileResponse {
	blocks := res.Layout.Blocks
	if blocks == nil {
		blocks = []layout.Block{}
	}
	return fileResponse{
		FileID:   res.FileID,
		Filename: res.Filename,
		Layout:   blocks,
		Image:    base64.StdEncoding.EncodeToString(res.Image),
	}
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		if err == http.ErrNotMultipart {
			// url-encoded forms carry no files but are otherwise fine
			if perr := r.ParseForm(); perr == nil {
				return nil
			}
		}
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid form")
	}
	return nil
}

func formValue(r *http.Request, field string) (string, error) {
	v := r.FormValue(field)
	if v == "" {
		return "", errors.InvalidInput("%s is required", field)
	}
	return v, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", fh.Filename)
	}
	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, errors.InvalidInput("file is required"))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", fh.Filename))
		return
	}
	res, err := s.svc.Upload(r.Context(), fh.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(res))
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	fileID, filename, err := fileFields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	idx, err := strconv.Atoi(r.FormValue("block_index"))
	if err != nil {
		s.writeError(w, r, errors.InvalidInput("block_index must be an integer"))
		return
	}
	// An empty label is a valid annotation.
	label := r.FormValue("label")

	res, err := s.svc.Annotate(r.Context(), fileID, filename, idx, label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(res))
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	fileID, filename, err := fileFields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.svc.SaveTemplate(r.Context(), fileID, filename, r.FormValue("custom_name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"template_id": saved.Handle()})
}

func (s *Server) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.LoadTemplate(r.Context(), chi.URLParam(r, "template_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	type summary struct {
		ID     string `json:"template_id"`
		Name   string `json:"custom_name,omitempty"`
		File   string `json:"filename"`
		Blocks int    `json:"blocks"`
	}
	out := make([]summary, len(all))
	for i, t := range all {
		out[i] = summary{ID: t.ID, Name: t.DisplayName, File: t.SourceFilename, Blocks: len(t.Layout.Blocks)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	fileID, filename, err := fileFields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	templateID, err := formValue(r, "template_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.ApplyTemplate(r.Context(), fileID, filename, templateID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(res))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	fileID, filename, err := fileFields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.FormValue("format"))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", errors.UserMessage(err)))
		return
	}
	data, err := s.svc.Export(r.Context(), fileID, filename, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+format.Ext()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["file_list"]
	}
	if len(files) == 0 {
		s.writeError(w, r, errors.InvalidInput("file_list is required"))
		return
	}

	items := make([]match.Item, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			s.logger.Warn("unreadable batch part", "filename", fh.Filename, "error", err)
		}
		items[i] = match.Item{Filename: fh.Filename, Data: data, Err: err}
	}

	outcomes, _, err := s.svc.Batch(r.Context(), items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_results": pipeline.BatchResults(outcomes)})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Layout(r.Context(), chi.URLParam(r, "file_id"), chi.URLParam(r, "filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(res))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.svc.Render(r.Context(), chi.URLParam(r, "file_id"), chi.URLParam(r, "filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctype := http.DetectContentType(img)
	if bytes.Contains(img[:min(len(img), 512)], []byte("<svg")) {
		ctype = "image/svg+xml"
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func fileFields(r *http.Request) (fileID, filename string, err error) {
	if fileID, err = formValue(r, "file_id"); err != nil {
		return "", "", err
	}
	if filename, err = formValue(r, "filename"); err != nil {
		return "", "", err
	}
	return fileID, filename, nil
}
