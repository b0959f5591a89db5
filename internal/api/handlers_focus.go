package api

import (
	"encoding/json"
	"net/http"

	"github.com/opencabin/caraudio-go/internal/models"
)

func (h *Handlers) setFocus(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.FocusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	state, appErr := h.ctrl.SetFocus(r.Context(), zid, req.Holders)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) getFocus(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	holders, appErr := h.ctrl.GetFocus(zid)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"holders": holders})
}

func (h *Handlers) getDucking(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	info, appErr := h.ctrl.GetDucking(zid)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
