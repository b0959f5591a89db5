// Package api implements the HTTP REST API of the car audio daemon.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencabin/caraudio-go/internal/audio"
	"github.com/opencabin/caraudio-go/internal/hal"
	"github.com/opencabin/caraudio-go/internal/models"
	"github.com/opencabin/caraudio-go/internal/volume"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// Controller is the interface the handlers use to interact with the system state.
type Controller interface {
	State() models.State
	GetInfo() models.Info
	GetZones() []*models.Zone
	GetZone(id int) (*models.Zone, *models.AppError)
	GetConfigs(zoneID int) ([]*models.ZoneConfig, *models.AppError)
	ZoneIDToOccupantID() map[int]int
	GetContexts() ([]audio.ContextInfo, *models.AppError)
	GetMirrorDevices() []*models.DeviceInfo
	SelectConfig(ctx context.Context, zoneID int, name string) (models.State, *models.AppError)
	GetGroups(zoneID int) ([]*models.VolumeGroup, *models.AppError)
	GetGroup(zoneID, groupID int) (*models.VolumeGroup, *models.AppError)
	SetGroup(ctx context.Context, zoneID, groupID int, upd models.GroupUpdate) (models.State, *models.AppError)
	OnCoreVolumeGroupChanged(ctx context.Context, zoneID, groupID int) (volume.EventFlags, *models.AppError)
	SetFocus(ctx context.Context, zoneID int, holders []audio.Attributes) (models.State, *models.AppError)
	GetFocus(zoneID int) ([]audio.Attributes, *models.AppError)
	GetDucking(zoneID int) (*models.DuckingInfo, *models.AppError)
	SetDeviceAvailability(ctx context.Context, upd models.DeviceAvailability) (models.State, *models.AppError)
	Reload(ctx context.Context) (models.State, *models.AppError)
	Temps(ctx context.Context) (hal.Temps, bool, error)
}

// EventBus is the interface for subscribing to state change events.
type EventBus interface {
	Subscribe(id string) <-chan models.State
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// intParam reads an integer path parameter by name.
func intParam(r *http.Request, name string) (int, error) {
	s := chi.URLParam(r, name)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.ErrBadRequest("invalid " + name + " parameter")
	}
	return n, nil
}
