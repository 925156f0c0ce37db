package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"chesed/internal/models"
	"chesed/internal/session"
	"chesed/internal/utils"
)

type claimRequest struct {
	Neighborhood string `json:"neighborhood" validate:"required,max=100"`
	Count        int    `json:"count"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type editRequestBody struct {
	Changes models.DeliveryChanges `json:"changes"`
}

type navigationResponse struct {
	DeliveryID string `json:"deliveryId"`
	WazeURL    string `json:"wazeUrl"`
	TelURL     string `json:"telUrl,omitempty"`
}

// sortNeighborhoods orders by the admin-set order, then by name in Hebrew
// collation.
func sortNeighborhoods(list []models.NeighborhoodWithCount) {
	c := collate.New(language.Hebrew)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Order != list[j].Order {
			return list[i].Order < list[j].Order
		}
		return c.CompareString(list[i].Name, list[j].Name) < 0
	})
}

// ListActiveNeighborhoods returns the neighborhoods volunteers can pick, with
// the number of deliveries waiting in each.
func (h *Handler) ListActiveNeighborhoods(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Neighborhoods.ListNeighborhoods(r.Context(), true)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	counts, err := h.deps.Neighborhoods.PendingCounts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]models.NeighborhoodWithCount, 0, len(list))
	for _, n := range list {
		out = append(out, models.NeighborhoodWithCount{Neighborhood: n, PendingCount: counts[n.Name]})
	}
	sortNeighborhoods(out)
	writeJSONSuccess(w, "Neighborhoods retrieved successfully", out)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.deps.Deliveries.Claim(r.Context(), currentSession(r), req.Neighborhood, req.Count)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, res.Message, res)
}

func (h *Handler) MyDeliveries(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Deliveries.MyDeliveries(r.Context(), currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Delivery{}
	}
	writeJSONSuccess(w, "Deliveries retrieved successfully", list)
}

func (h *Handler) ChangeMyStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	d, err := h.deps.Deliveries.TransitionStatus(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Status updated", d)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Deliveries.Release(r.Context(), currentSession(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery released", d)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Deliveries.Complete(r.Context(), currentSession(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Delivery marked as done", nil)
}

func (h *Handler) SubmitEditRequest(w http.ResponseWriter, r *http.Request) {
	var req editRequestBody
	if !h.decodeJSON(w, r, &req) {
		return
	}
	er, err := h.deps.EditRequests.Submit(r.Context(), currentSession(r), chi.URLParam(r, "id"), req.Changes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Edit request sent for review", er)
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Volunteers.Heartbeat(r.Context(), currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "ok", v)
}

// visibleDelivery loads a delivery the caller holds, or any delivery for admins.
func (h *Handler) visibleDelivery(r *http.Request, sess session.Session) (*models.Delivery, error) {
	d, err := h.deps.Deliveries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin && !d.IsAssignedTo(sess.UserID) {
		return nil, fmt.Errorf("delivery %s is not yours: %w", d.ID, models.ErrForbidden)
	}
	return d, nil
}

// Navigation returns the Waze deep link and the phone link of a delivery.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	d, err := h.visibleDelivery(r, currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	link, ok := utils.WazeURL(d.Address)
	if !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "Delivery has no address to navigate to")
		return
	}
	writeJSONSuccess(w, "Navigation link", navigationResponse{
		DeliveryID: d.ID,
		WazeURL:    link,
		TelURL:     utils.TelLink(d.Phone),
	})
}

// NavigationQR renders the Waze link as a PNG QR code.
func (h *Handler) NavigationQR(w http.ResponseWriter, r *http.Request) {
	d, err := h.visibleDelivery(r, currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 0 || size > 1024 {
		size = 0
	}
	png, err := utils.WazeQRCode(d.Address, size)
	if err != nil {
		if errors.Is(err, utils.ErrNoDestination) {
			writeJSONError(w, http.StatusUnprocessableEntity, "Delivery has no address to navigate to")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
