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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/assetfind/core"
)

const (
	codeInvalidType  = "invalid_type"
	codeInvalidID    = "invalid_id"
	codeNotFound     = "not_found"
	codeTimeout      = "timeout"
	codeSearchFailed = "search_failed"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type assetJSON struct {
	ID           string      `json:"id"`
	OriginalName string      `json:"originalName"`
	MimeType     string      `json:"mimeType"`
	AIData       core.AIData `json:"aiData"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	HasEmbedding bool        `json:"hasEmbedding"`
}

type assetsResponse struct {
	Assets []assetJSON `json:"assets"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorEnvelope{
		Error: apiError{Message: msg, Code: code},
	})
}

func respondAssets(c *gin.Context, assets []*core.Asset) {
	out := make([]assetJSON, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetJSON{
			ID:           a.ID.String(),
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			AIData:       a.AIData,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
			HasEmbedding: a.HasEmbedding(),
		})
	}
	c.JSON(http.StatusOK, assetsResponse{Assets: out})
}
