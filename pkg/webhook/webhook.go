// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"

	"github.com/fisherhq/fisher/pkg/processor"
	"github.com/fisherhq/fisher/pkg/providers"
)

type envelope struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
}

func (s *Server) handleHook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		name := r.PathValue("name")
		h, ok := s.hooks[name]
		if !ok {
			s.h.RenderJSON(w, http.StatusNotFound, envelope{Status: "not_found"})
			return
		}

		webReq, err := translateRequest(r, s.behindProxies)
		if err != nil {
			logger.ErrorContext(ctx, "failed to translate request", "hook", name, "error", err)
			s.h.RenderJSON(w, http.StatusForbidden, envelope{Status: "forbidden"})
			return
		}

		req := providers.NewWebRequest(webReq)

		rt, chosen, err := h.Validate(req)
		if err != nil {
			logger.ErrorContext(ctx, "failed to validate request", "hook", name, "error", err)
			s.h.RenderJSON(w, http.StatusForbidden, envelope{Status: "forbidden"})
			return
		}

		switch rt {
		case providers.ExecuteHook:
			s.processor.Submit(&processor.Job{
				ID:       uuid.New(),
				HookName: name,
				Hook:     h,
				Request:  req,
				Provider: chosen.Provider,
			})
			s.h.RenderJSON(w, http.StatusOK, envelope{Status: "ok"})
		case providers.Ping:
			s.h.RenderJSON(w, http.StatusOK, envelope{Status: "ok"})
		default:
			s.h.RenderJSON(w, http.StatusForbidden, envelope{Status: "forbidden"})
		}
	})
}

func (s *Server) handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.enableHealth {
			s.h.RenderJSON(w, http.StatusForbidden, envelope{Status: "forbidden"})
			return
		}

		hd := s.processor.Health()
		s.h.RenderJSON(w, http.StatusOK, envelope{
			Status: "ok",
			Result: map[string]int{
				"active_jobs": hd.ActiveJobs,
				"queue_size":  hd.QueueSize,
			},
		})
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.h.RenderJSON(w, http.StatusNotFound, envelope{Status: "not_found"})
}
