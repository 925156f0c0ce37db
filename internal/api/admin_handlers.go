package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"chesed/internal/assignment"
	"chesed/internal/constants"
	"chesed/internal/events"
	"chesed/internal/models"
	"chesed/internal/reports"
	"chesed/internal/volunteers"
)

// maxImportBytes limits uploaded spreadsheets.
const maxImportBytes = 20 << 20

type updateFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

type assignRequest struct {
	VolunteerID string `json:"volunteerId" validate:"required"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

type neighborhoodRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type rejectRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// ListDeliveries filters deliveries by status, neighborhood, volunteer and free text.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.DeliveryFilter{
		Status:       q.Get("status"),
		Neighborhood: q.Get("neighborhood"),
		Search:       q.Get("q"),
		VolunteerID:  q.Get("volunteer"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = limit
	}
	list, err := h.deps.Deliveries.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Delivery{}
	}
	writeJSONSuccess(w, "Deliveries retrieved successfully", list)
}

func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Deliveries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery retrieved successfully", d)
}

func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req assignment.NewDelivery
	if !h.decodeJSON(w, r, &req) {
		return
	}
	d, err := h.deps.Deliveries.Create(r.Context(), currentSession(r), req, h.deps.DefaultCity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery created", d)
}

// UpdateDeliveryField edits one top-level or address field.
func (h *Handler) UpdateDeliveryField(w http.ResponseWriter, r *http.Request) {
	var req updateFieldRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	sess := currentSession(r)
	id := chi.URLParam(r, "id")
	d, err := h.deps.Deliveries.UpdateField(r.Context(), sess, id, req.Field, req.Value)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Info("delivery field updated",
		zap.String("admin", sess.Label()), zap.String("delivery_id", id), zap.String("field", req.Field))
	writeJSONSuccess(w, fmt.Sprintf("Field '%s' updated", req.Field), d)
}

func (h *Handler) SetDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	d, err := h.deps.Deliveries.AdminSetStatus(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Status updated", d)
}

func (h *Handler) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	d, err := h.deps.Deliveries.Assign(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.VolunteerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery assigned", d)
}

func (h *Handler) UnassignDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Deliveries.Unassign(r.Context(), currentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery returned to the pool", d)
}

func (h *Handler) DeleteDelivery(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Deliveries.Delete(r.Context(), currentSession(r), []string{chi.URLParam(r, "id")})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if n == 0 {
		writeJSONError(w, http.StatusNotFound, "Delivery not found")
		return
	}
	writeJSONSuccess(w, "Delivery deleted", map[string]int{"deleted": n})
}

func (h *Handler) BulkDeleteDeliveries(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	n, err := h.deps.Deliveries.Delete(r.Context(), currentSession(r), req.IDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, fmt.Sprintf("%d deliveries deleted", n), map[string]int{"deleted": n})
}

// GeocodeDelivery looks up and stores the coordinates of a delivery.
func (h *Handler) GeocodeDelivery(w http.ResponseWriter, r *http.Request) {
	if h.deps.Locator == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Geocoding is not configured")
		return
	}
	d, err := h.deps.Locator.Locate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.publish(r, events.Event{
		Type:         constants.EVENT_DELIVERY_UPDATED,
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		ActorID:      currentSession(r).UserID,
	})
	writeJSONSuccess(w, "Coordinates saved", d)
}

func (h *Handler) RebuildPendingIndex(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Deliveries.RebuildIndex(r.Context(), currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, fmt.Sprintf("Pending index rebuilt with %d entries", n), map[string]int{"entries": n})
}

// ImportDeliveries accepts a CSV or XLSX upload in the "file" form field.
func (h *Handler) ImportDeliveries(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to parse multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to get file from form: "+err.Error())
		return
	}
	defer file.Close()

	res, err := h.deps.Importer.ImportFile(r.Context(), currentSession(r), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, fmt.Sprintf("Imported %d deliveries, %d failed", res.Created, res.Failed), res)
}

// ExportDeliveries streams every delivery as an Excel workbook.
func (h *Handler) ExportDeliveries(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Deliveries.List(r.Context(), models.DeliveryFilter{
		Status:       r.URL.Query().Get("status"),
		Neighborhood: r.URL.Query().Get("neighborhood"),
		All:          true,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	names, err := h.deps.Volunteers.Names(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteDeliveries(&buf, list, names); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("deliveries-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *Handler) ListAllNeighborhoods(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Neighborhoods.ListNeighborhoods(r.Context(), false)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Neighborhood{}
	}
	writeJSONSuccess(w, "Neighborhoods retrieved successfully", list)
}

func (h *Handler) AddNeighborhood(w http.ResponseWriter, r *http.Request) {
	var req neighborhoodRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "Neighborhood name is required")
		return
	}
	n, err := h.deps.Neighborhoods.UpsertNeighborhood(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.publish(r, events.Event{Type: constants.EVENT_NEIGHBORHOOD_SAVED, Neighborhood: n.Name, ActorID: currentSession(r).UserID})
	writeJSONSuccess(w, "Neighborhood saved", n)
}

func (h *Handler) SetNeighborhoodActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.deps.Neighborhoods.SetNeighborhoodActive(r.Context(), id, req.Active); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.publish(r, events.Event{Type: constants.EVENT_NEIGHBORHOOD_SAVED, ActorID: currentSession(r).UserID})
	writeJSONSuccess(w, "Neighborhood updated", map[string]any{"id": id, "active": req.Active})
}

// ListVolunteers supports ?q= for name or e-mail search and ?online=1.
func (h *Handler) ListVolunteers(w http.ResponseWriter, r *http.Request) {
	onlineOnly, _ := strconv.ParseBool(r.URL.Query().Get("online"))
	list, err := h.deps.Volunteers.List(r.Context(), volunteers.Filter{
		Search:     r.URL.Query().Get("q"),
		OnlineOnly: onlineOnly,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Volunteers retrieved successfully", list)
}

func (h *Handler) ListEditRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.EditRequests.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.EditRequestView{}
	}
	writeJSONSuccess(w, "Edit requests retrieved successfully", list)
}

func (h *Handler) ApproveEditRequest(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.EditRequests.Approve(r.Context(), currentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Edit request approved", d)
}

func (h *Handler) RejectEditRequest(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.EditRequests.Reject(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.Note); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Edit request rejected", nil)
}

func (h *Handler) publish(r *http.Request, e events.Event) {
	if h.deps.Broker == nil {
		return
	}
	if err := h.deps.Broker.Publish(r.Context(), e); err != nil {
		h.logger.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
