package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/m-mizutani/burrow/pkg/model"
)

type registerResponse struct {
	AgentID        string `json:"agent_id"`
	PublicKey      string `json:"public_key"`
	RecoveryPhrase string `json:"recovery_phrase"`
}

type recoverRequest struct {
	RecoveryPhrase string `json:"recovery_phrase"`
}

type recoverResponse struct {
	AgentID   string `json:"agent_id"`
	PublicKey string `json:"public_key"`
	Recovered bool   `json:"recovered"`
}

type storeRequest struct {
	AgentID       string `json:"agent_id"`
	EncryptedData string `json:"encrypted_data"`
	Signature     string `json:"signature"`
}

type storeResponse struct {
	Stored  bool `json:"stored"`
	Version int  `json:"version"`
}

type signedRequest struct {
	AgentID   string `json:"agent_id"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
}

// retrieveResponse always carries encrypted_data, even when the stored
// blob is the empty string. The never-stored case uses its own shape so
// the two remain distinguishable field-wise.
type retrieveResponse struct {
	AgentID       string `json:"agent_id"`
	EncryptedData string `json:"encrypted_data"`
	Version       int    `json:"version"`
	StoredAt      string `json:"stored_at"`
}

type emptyRetrieveResponse struct {
	AgentID string `json:"agent_id"`
	Message string `json:"message"`
}

type memoryEntry struct {
	Version       int    `json:"version"`
	EncryptedData string `json:"encrypted_data"`
	StoredAt      string `json:"stored_at"`
}

type historyResponse struct {
	AgentID  string        `json:"agent_id"`
	Count    int           `json:"count"`
	Memories []memoryEntry `json:"memories"`
}

type clearResponse struct {
	Cleared      bool `json:"cleared"`
	DeletedCount int  `json:"deleted_count"`
}

type statsResponse struct {
	TotalAgents             int     `json:"total_agents"`
	TotalMemories           int     `json:"total_memories"`
	AverageVersionsPerAgent float64 `json:"average_versions_per_agent"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]any{
		"service": "Agent Memory Service",
		"endpoints": []string{
			"POST /agents/register",
			"POST /agents/recover",
			"POST /memory/store",
			"POST /memory/retrieve",
			"POST /memory/history",
			"POST /memory/clear",
			"GET /stats",
			"GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, database := "healthy", "connected"
	if _, err := s.agents.Stats(r.Context()); err != nil {
		status, database = "degraded", "unavailable"
	}
	s.respondJSON(w, r, http.StatusOK, map[string]string{
		"status":   status,
		"database": database,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := s.agents.Register(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, &registerResponse{
		AgentID:        string(reg.Agent.ID),
		PublicKey:      base64.StdEncoding.EncodeToString(reg.Agent.PublicKey),
		RecoveryPhrase: reg.RecoveryPhrase,
	})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	agent, err := s.agents.Recover(r.Context(), req.RecoveryPhrase)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, &recoverResponse{
		AgentID:   string(agent.ID),
		PublicKey: base64.StdEncoding.EncodeToString(agent.PublicKey),
		Recovered: true,
	})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.memories.Store(r.Context(), model.AgentID(req.AgentID), req.EncryptedData, req.Signature)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, &storeResponse{
		Stored:  true,
		Version: rec.Version,
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req signedRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.memories.RetrieveLatest(r.Context(), model.AgentID(req.AgentID), req.Signature, req.Timestamp)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if rec == nil {
		s.respondJSON(w, r, http.StatusOK, &emptyRetrieveResponse{
			AgentID: req.AgentID,
			Message: "no memory stored",
		})
		return
	}

	s.respondJSON(w, r, http.StatusOK, &retrieveResponse{
		AgentID:       string(rec.AgentID),
		EncryptedData: rec.EncryptedData,
		Version:       rec.Version,
		StoredAt:      rec.StoredAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req signedRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	records, err := s.memories.History(r.Context(), model.AgentID(req.AgentID), req.Signature, req.Timestamp)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := &historyResponse{
		AgentID:  req.AgentID,
		Count:    len(records),
		Memories: make([]memoryEntry, 0, len(records)),
	}
	for _, rec := range records {
		resp.Memories = append(resp.Memories, memoryEntry{
			Version:       rec.Version,
			EncryptedData: rec.EncryptedData,
			StoredAt:      rec.StoredAt.UTC().Format(time.RFC3339Nano),
		})
	}
	s.respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req signedRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	deleted, err := s.memories.Clear(r.Context(), model.AgentID(req.AgentID), req.Signature, req.Timestamp)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, &clearResponse{
		Cleared:      true,
		DeletedCount: deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.agents.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, &statsResponse{
		TotalAgents:             stats.TotalAgents,
		TotalMemories:           stats.TotalMemoryRecords,
		AverageVersionsPerAgent: stats.AverageVersionsPerAgent,
	})
}
