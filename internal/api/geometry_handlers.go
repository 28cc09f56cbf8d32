package api

import (
	"encoding/json"
	"net/http"

	"github.com/schoolbot/lockbox/internal/handlers"
	"github.com/schoolbot/lockbox/pkg/id"
)

type formGeometryRequest struct {
	URL            string `json:"url"`
	GrabScreenshot bool   `json:"grab_screenshot"`
}

// PostFormGeometry handles POST /form_geometry: returns the cached
// geometry for url if one already exists (complete or still probing),
// otherwise creates a pending entry and schedules a get-form-geometry
// probe.
func (d *Deps) PostFormGeometry(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	var req formGeometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, errBadRequest("url is required"))
		return
	}

	existing, err := d.Store.Geometries.GetByURL(r.Context(), req.URL)
	if err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if !isNotFound(err) {
		writeError(w, classifyStoreErr(err))
		return
	}

	g, err := d.Store.Geometries.CreatePending(r.Context(), id.NewShortID(), req.URL, u.Token)
	if err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}

	args := handlers.GetFormGeometryArgs{GeometryID: g.ID, GrabScreenshot: req.GrabScreenshot}
	if err := d.Sched.Insert(r.Context(), args, nil); err != nil {
		writeError(w, errInternal("enqueue get-form-geometry"))
		return
	}

	writeJSON(w, http.StatusOK, g)
}
