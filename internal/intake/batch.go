package intake

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
)

// BatchField is the form field carrying a batch file.
const BatchField = "file"

var (
	ErrBatchFormat = errors.New("batch must be a .csv or .zip file")
	ErrManifest    = errors.New("invalid batch manifest")
)

// BatchSummary describes a validated batch.
type BatchSummary struct {
	Kind  string `json:"kind"`
	Rows  int    `json:"rows"`
	Files int    `json:"files,omitempty"`
}

// BatchResult is the backend response plus what intake saw in the file.
type BatchResult struct {
	backend.BatchResult
	Batch BatchSummary `json:"batch"`
}

// InspectBatch validates a CSV manifest or a ZIP carrying one at its top
// level. Files referenced by a ZIP manifest must be present in the archive.
func InspectBatch(filename string, data []byte, maxSize int64) (BatchSummary, error) {
	if int64(len(data)) > maxSize {
		return BatchSummary{}, fmt.Errorf("%w: %s", ErrFileTooLarge, filename)
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		rows, _, err := readManifest(bytes.NewReader(data))
		if err != nil {
			return BatchSummary{}, err
		}
		return BatchSummary{Kind: "csv", Rows: rows}, nil
	case ".zip":
		return inspectArchive(data)
	}
	return BatchSummary{}, fmt.Errorf("%w: %s", ErrBatchFormat, filename)
}

func inspectArchive(data []byte) (BatchSummary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return BatchSummary{}, fmt.Errorf("%w: unreadable archive", ErrBatchFormat)
	}

	entries := make(map[string]bool, len(zr.File))
	var manifest *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries[f.Name] = true
		if manifest == nil && !strings.Contains(f.Name, "/") && strings.EqualFold(path.Ext(f.Name), ".csv") {
			manifest = f
		}
	}
	if manifest == nil {
		return BatchSummary{}, fmt.Errorf("%w: archive has no top-level .csv manifest", ErrManifest)
	}

	rc, err := manifest.Open()
	if err != nil {
		return BatchSummary{}, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	defer rc.Close()

	rows, refs, err := readManifest(rc)
	if err != nil {
		return BatchSummary{}, err
	}
	for _, ref := range refs {
		if !entries[ref] {
			return BatchSummary{}, fmt.Errorf("%w: %s is not in the archive", ErrManifest, ref)
		}
	}

	return BatchSummary{Kind: "zip", Rows: rows, Files: len(entries) - 1}, nil
}

// readManifest returns the data row count and every document path the
// manifest references. Only applicant_name is required; the backend
// defaults ic_number, loan_type and requested_amount.
func readManifest(r io.Reader) (int, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: missing header", ErrManifest)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	nameCol, ok := index["applicant_name"]
	if !ok {
		return 0, nil, fmt.Errorf("%w: applicant_name column required", ErrManifest)
	}

	var refs []string
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrManifest, err)
		}
		rows++
		if strings.TrimSpace(record[nameCol]) == "" {
			return 0, nil, fmt.Errorf("%w: row %d has no applicant_name", ErrManifest, rows)
		}
		for _, col := range []string{"bank_statement_path", "essay_path"} {
			if i, ok := index[col]; ok && strings.TrimSpace(record[i]) != "" {
				refs = append(refs, strings.TrimSpace(record[i]))
			}
		}
	}

	if rows == 0 {
		return 0, nil, fmt.Errorf("%w: no applications listed", ErrManifest)
	}
	return rows, refs, nil
}

// SubmitBatch validates a batch file and forwards it unchanged. The file
// limit matches a full four-document application.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	limit := int64(len(Documents)) * h.maxSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+formMemory)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: request exceeds %d bytes", ErrFileTooLarge, tooLarge.Limit)
		} else {
			err = fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[BatchField]
	if len(headers) == 0 {
		err := missingError([]string{BatchField})
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	header := headers[0]

	data, err := h.readLimit(header, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	summary, err := InspectBatch(header.Filename, data, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	contentType := "text/csv"
	if summary.Kind == "zip" {
		contentType = "application/zip"
	}

	result, err := h.uploader.UploadBatch(r.Context(), backend.UploadFile{
		Field:       BatchField,
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusAccepted
	if !result.Success {
		status = http.StatusUnprocessableEntity
		h.logger.Warn("backend rejected batch upload", "file", header.Filename, "message", result.Message)
	} else {
		h.logger.Info("batch submitted",
			"file", header.Filename,
			"kind", summary.Kind,
			"rows", summary.Rows,
			"processed", result.ProcessedCount,
		)
	}

	handlers.RespondJSON(w, status, BatchResult{BatchResult: *result, Batch: summary})
}
