package http

import (
	"errors"
	"fmt"
	"net/http"

	"fintrack/internal/log"
	"fintrack/internal/upload"
)

type uploadFormData struct {
	Required []string
	MaxMB    int64
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	s.renderPage(w, r, http.StatusOK, "upload.html", pageData{
		Title: "Upload transactions",
		User:  sess.Username,
		Content: uploadFormData{
			Required: upload.RequiredColumns,
			MaxMB:    s.deps.UploadMaxBytes >> 20,
		},
	})
}

// handleUpload imports an .xlsx or .csv file into the ledger. Missing
// required columns, or any bad row, reject the whole file and nothing is stored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.deps.UploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload failed: file larger than %d MB", s.deps.UploadMaxBytes>>20)).Write(w)
			return
		}
		BadRequestError("Upload failed: " + err.Error()).Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Upload failed: choose a file to upload").Write(w)
		return
	}
	defer file.Close()

	fields := log.NewFields().WithUser(sess.Username).WithImport("", header.Filename, 0)

	rows, err := upload.Parse(header.Filename, file)
	if err != nil {
		var missing *upload.MissingColumnsError
		if errors.As(err, &missing) {
			UnprocessableEntityError(missing.Error()).Write(w)
			return
		}
		UnprocessableEntityError("Upload failed: " + err.Error()).Write(w)
		return
	}

	ts, err := upload.ToTransactions(rows, sess.AccountID, "")
	if err != nil {
		UnprocessableEntityError("Upload failed: " + err.Error()).Write(w)
		return
	}

	res, err := s.deps.Transactions.Import(r.Context(), header.Filename, ts)
	if err != nil {
		s.events.LogError(r.Context(), "Import failed", err, log.OpImport, fields)
		InternalServerError("Upload failed: could not store the transactions").Write(w)
		return
	}

	msg := fmt.Sprintf("Imported %d transactions from %s (batch %s)", len(res.IDs), header.Filename, res.BatchID)
	MessageResponse(http.StatusOK, "success", msg).
		TriggerImportCompleted(res.BatchID, len(res.IDs)).
		TriggerSuccessNotification(msg).
		Write(w)
}
