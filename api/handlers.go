// Copyright 2025 Poiesic Systems
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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

// Searcher is the query surface served over HTTP. *search.Searcher
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, filters core.Filters) ([]*core.Asset, error)
	Related(ctx context.Context, id uuid.UUID) ([]*core.Asset, error)
}

type assetHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

func (h *assetHandler) search(c *gin.Context) {
	mediaType, err := core.ParseMediaType(c.Query("type"))
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidType, err)
		return
	}
	filters := core.Filters{Type: mediaType, Color: c.Query("color")}

	assets, err := h.searcher.Search(c.Request.Context(), c.Query("search"), filters)
	if err != nil {
		h.failed(c, "search", err)
		return
	}
	respondAssets(c, assets)
}

func (h *assetHandler) related(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidID, err)
		return
	}

	assets, err := h.searcher.Related(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, codeNotFound, err)
			return
		}
		h.failed(c, "related", err)
		return
	}
	respondAssets(c, assets)
}

func (h *assetHandler) failed(c *gin.Context, op string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(c, http.StatusGatewayTimeout, codeTimeout, err)
		return
	}
	h.logger.Error("request failed", "op", op, "err", err)
	respondError(c, http.StatusInternalServerError, codeSearchFailed, err)
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
