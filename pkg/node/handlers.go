package node

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/envelope"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

const contentTypeOctetStream = "application/octet-stream"

// handleUpload handles POST /upload/{name}
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "file name is required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.node.maxUploadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Upload exceeds maximum size", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	upload, err := envelope.ParseSignedUpload(body)
	if err != nil {
		s.node.logger.Sugar().Warnw("Rejected malformed upload", "name", name, "error", err)
		http.Error(w, "Malformed signed upload", http.StatusBadRequest)
		return
	}
	if _, err := upload.Envelope(); err != nil {
		s.node.logger.Sugar().Warnw("Rejected malformed envelope", "name", name, "error", err)
		http.Error(w, "Malformed envelope", http.StatusBadRequest)
		return
	}

	id := types.FileIDFromName(name)
	proof, root, err := s.node.ledger.Append(id, body)
	if err != nil {
		s.node.logger.Sugar().Errorw("Failed to store upload", "name", name, "file_id", id.Hex(), "error", err)
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	s.node.logger.Sugar().Infow("Stored upload",
		"request_id", w.Header().Get(RequestIDHeader),
		"file_id", id.Hex(),
		"leaf", upload.Digest().Hex(),
		"top_hash", root.Hex(),
		"size", len(body),
	)

	writeOctets(w, http.StatusCreated, merkle.EncodeProof(proof))
}

// handleRead handles GET /read/{name}
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "file name is required", http.StatusBadRequest)
		return
	}

	id := types.FileIDFromName(name)
	proof, blob, err := s.node.ledger.Lookup(id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		s.node.logger.Sugar().Errorw("Failed to read upload", "name", name, "file_id", id.Hex(), "error", err)
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	buf.Write(merkle.EncodeProof(proof))
	buf.Write(blob)
	writeOctets(w, http.StatusOK, buf.Bytes())
}

// handleVerify handles GET /verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	root, ok, err := s.node.ledger.TopHash()
	if err != nil {
		s.node.logger.Sugar().Errorw("Failed to compute top hash", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Store is empty", http.StatusNotFound)
		return
	}
	writeOctets(w, http.StatusOK, root.Bytes())
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if err := s.node.store.HealthCheck(); err != nil {
		s.node.logger.Sugar().Warnw("Health check failed", "error", err)
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func writeOctets(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeOctetStream)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
