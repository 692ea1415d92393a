// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/internal/version"
	"github.com/blinklabs-io/coffer/types"
)

const (
	DefaultJournalCount = 100
	MaxJournalCount     = 1000
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeVaultError maps a vault error to a response
func (a *Api) writeVaultError(
	w http.ResponseWriter,
	msg string,
	err error,
) {
	switch {
	case errors.Is(err, types.ErrProposalNotFound):
		writeError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, types.ErrReentrantCall):
		writeError(
			w,
			http.StatusServiceUnavailable,
			"Service Unavailable",
			err.Error(),
		)
	default:
		a.logger.Error(msg, "error", err)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			msg,
		)
	}
}

func (a *Api) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "coffer",
		Version: version.GetVersionString(),
	})
}

func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleStatus handles GET /v1/status
func (a *Api) handleStatus(
	w http.ResponseWriter,
	r *http.Request,
) {
	status, err := a.vault.Status(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve status", err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(status))
}

// handleDiscovery handles GET /v1/discovery
func (a *Api) handleDiscovery(
	w http.ResponseWriter,
	r *http.Request,
) {
	disc, err := a.vault.Discovery(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve discovery record", err)
		return
	}
	writeJSON(w, http.StatusOK, DiscoveryResponse{
		DeploymentId:    disc.DeploymentId.String(),
		Treasury:        disc.Treasury.String(),
		OwnershipLedger: disc.OwnershipLedger.String(),
		Governor:        disc.Governor.String(),
		Ceo:             disc.Ceo.String(),
	})
}

// handleHolders handles GET /v1/holders and supports pagination
func (a *Api) handleHolders(
	w http.ResponseWriter,
	r *http.Request,
) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	status, err := a.vault.Status(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve status", err)
		return
	}
	holders, err := a.vault.Holders(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve holders", err)
		return
	}
	page := paginate(holders, params)
	ret := make([]HolderResponse, 0, len(page))
	for _, h := range page {
		ret = append(ret, HolderResponse{
			Address:        h.Address.String(),
			Balance:        h.Balance,
			Delegate:       h.Delegate.String(),
			Votes:          h.Votes,
			PendingRevenue: newAmount(h.PendingRevenue, status.Decimals),
		})
	}
	SetPaginationHeaders(w, len(holders), params)
	writeJSON(w, http.StatusOK, ret)
}

// handleProposals handles GET /v1/proposals and supports pagination and an
// optional state filter
func (a *Api) handleProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	proposals, err := a.vault.Proposals(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve proposals", err)
		return
	}
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := proposals[:0:0]
		for _, p := range proposals {
			if p.State.String() == state {
				filtered = append(filtered, p)
			}
		}
		proposals = filtered
	}
	page := paginate(proposals, params)
	ret := make([]ProposalResponse, 0, len(page))
	for _, p := range page {
		ret = append(ret, newProposalResponse(p))
	}
	SetPaginationHeaders(w, len(proposals), params)
	writeJSON(w, http.StatusOK, ret)
}

func (a *Api) proposalId(
	w http.ResponseWriter,
	r *http.Request,
) (governance.ProposalId, bool) {
	id, err := governance.ParseProposalId(chi.URLParam(r, "id"))
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid proposal id",
		)
		return governance.ProposalId{}, false
	}
	return id, true
}

// handleProposal handles GET /v1/proposals/{id}
func (a *Api) handleProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := a.proposalId(w, r)
	if !ok {
		return
	}
	proposal, err := a.vault.Proposal(r.Context(), id)
	if err != nil {
		a.writeVaultError(w, "failed to retrieve proposal", err)
		return
	}
	votes, err := a.vault.Votes(r.Context(), id)
	if err != nil {
		a.writeVaultError(w, "failed to retrieve votes", err)
		return
	}
	quorum, err := a.vault.QuorumRequired(r.Context())
	if err != nil {
		a.writeVaultError(w, "failed to retrieve quorum", err)
		return
	}
	writeJSON(w, http.StatusOK, ProposalDetailResponse{
		ProposalResponse: newProposalResponse(proposal),
		QuorumRequired:   quorum,
		Votes:            newVoteResponses(votes),
	})
}

// handleVotes handles GET /v1/proposals/{id}/votes
func (a *Api) handleVotes(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := a.proposalId(w, r)
	if !ok {
		return
	}
	votes, err := a.vault.Votes(r.Context(), id)
	if err != nil {
		a.writeVaultError(w, "failed to retrieve votes", err)
		return
	}
	writeJSON(w, http.StatusOK, newVoteResponses(votes))
}

// handleJournal handles GET /v1/journal. Entries are returned in sequence
// order starting after the optional "after" sequence.
func (a *Api) handleJournal(
	w http.ResponseWriter,
	r *http.Request,
) {
	if a.journal == nil {
		writeError(
			w,
			http.StatusServiceUnavailable,
			"Service Unavailable",
			"journal is not available",
		)
		return
	}
	query := r.URL.Query()
	var after uint64
	if afterParam := query.Get("after"); afterParam != "" {
		var err error
		after, err = strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid after parameter",
			)
			return
		}
	}
	count := DefaultJournalCount
	if countParam := query.Get("count"); countParam != "" {
		var err error
		count, err = strconv.Atoi(countParam)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid count parameter",
			)
			return
		}
	}
	count = max(1, min(count, MaxJournalCount))
	entries, err := a.journal.Journal(after, count)
	if err != nil {
		a.logger.Error("failed to read journal", "error", err)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"failed to read journal",
		)
		return
	}
	ret := make([]JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, newJournalEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, ret)
}
