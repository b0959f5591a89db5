package api

import (
	"encoding/json"
	"net/http"

	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
)

func (h *Handlers) getGroups(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	groups, appErr := h.ctrl.GetGroups(zid)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

func (h *Handlers) getGroup(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	g, appErr := h.ctrl.GetGroup(zid, gid)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handlers) setGroup(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	var upd models.GroupUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	state, appErr := h.ctrl.SetGroup(r.Context(), zid, gid, upd)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// syncGroup reconciles a group with the core audio engine after the engine
// reported a change there. The response says which of volume and mute moved.
func (h *Handlers) syncGroup(w http.ResponseWriter, r *http.Request) {
	zid, err := intParam(r, "zid")
	if err != nil {
		writeError(w, err)
		return
	}
	gid, err := intParam(r, "gid")
	if err != nil {
		writeError(w, err)
		return
	}
	flags, appErr := h.ctrl.OnCoreVolumeGroupChanged(r.Context(), zid, gid)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"volume_changed": flags&volume.EventVolumeChange != 0,
		"mute_changed":   flags&volume.EventMute != 0,
	})
}
