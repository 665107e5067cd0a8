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

// Package api exposes asset search and related-asset lookup over HTTP.
//
// Routes:
//
//	GET /api/assets?search=&type=&color=   ranked search results
//	GET /api/assets/:id/related            nearest neighbours of one asset
//	GET /healthz                           liveness
//
// Successful responses carry {"assets": [...]}. Failures carry the
// envelope {"error": {"message": "...", "code": "..."}}.
package api
