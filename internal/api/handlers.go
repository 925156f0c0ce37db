package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chesed/internal/assignment"
	"chesed/internal/auth"
	"chesed/internal/events"
	"chesed/internal/importer"
	"chesed/internal/models"
	"chesed/internal/session"
	"chesed/internal/stats"
	"chesed/internal/volunteers"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// AuthService signs users in and resolves bearer tokens.
type AuthService interface {
	Authenticate(ctx context.Context, token string) (session.Session, error)
	SignUp(ctx context.Context, c auth.Credentials) (*auth.Result, error)
	SignIn(ctx context.Context, email, password string) (*auth.Result, error)
	Anonymous(ctx context.Context, displayName string) (*auth.Result, error)
	SignOut(sess session.Session)
	Me(ctx context.Context, sess session.Session) (*models.User, error)
}

// DeliveryService covers the volunteer and admin operations on deliveries.
type DeliveryService interface {
	Claim(ctx context.Context, sess session.Session, neighborhood string, n int) (*assignment.ClaimResult, error)
	Release(ctx context.Context, sess session.Session, deliveryID string) (*models.Delivery, error)
	TransitionStatus(ctx context.Context, sess session.Session, deliveryID, status string) (*models.Delivery, error)
	Complete(ctx context.Context, sess session.Session, deliveryID string) error
	MyDeliveries(ctx context.Context, sess session.Session) ([]models.Delivery, error)
	List(ctx context.Context, f models.DeliveryFilter) ([]models.Delivery, error)
	Get(ctx context.Context, deliveryID string) (*models.Delivery, error)
	Create(ctx context.Context, sess session.Session, in assignment.NewDelivery, defaultCity string) (*models.Delivery, error)
	UpdateField(ctx context.Context, sess session.Session, deliveryID, field string, value any) (*models.Delivery, error)
	AdminSetStatus(ctx context.Context, sess session.Session, deliveryID, status string) (*models.Delivery, error)
	Assign(ctx context.Context, sess session.Session, deliveryID, volunteerID string) (*models.Delivery, error)
	Unassign(ctx context.Context, sess session.Session, deliveryID string) (*models.Delivery, error)
	Delete(ctx context.Context, sess session.Session, ids []string) (int, error)
	RebuildIndex(ctx context.Context, sess session.Session) (int, error)
}

// EditRequestService is the edit-request review workflow.
type EditRequestService interface {
	Submit(ctx context.Context, sess session.Session, deliveryID string, proposed models.DeliveryChanges) (*models.EditRequest, error)
	ListPending(ctx context.Context) ([]models.EditRequestView, error)
	Approve(ctx context.Context, sess session.Session, requestID string) (*models.Delivery, error)
	Reject(ctx context.Context, sess session.Session, requestID, note string) error
}

// NeighborhoodStore reads and maintains the neighborhood list.
type NeighborhoodStore interface {
	ListNeighborhoods(ctx context.Context, activeOnly bool) ([]models.Neighborhood, error)
	UpsertNeighborhood(ctx context.Context, name string) (*models.Neighborhood, error)
	SetNeighborhoodActive(ctx context.Context, id string, active bool) error
	PendingCounts(ctx context.Context) (map[string]int, error)
}

type VolunteerService interface {
	Heartbeat(ctx context.Context, sess session.Session) (*models.Volunteer, error)
	List(ctx context.Context, f volunteers.Filter) ([]models.VolunteerSummary, error)
	Names(ctx context.Context) (map[string]string, error)
}

type StatsService interface {
	ForVolunteer(ctx context.Context, sess session.Session) (*models.VolunteerStats, error)
	SetGoals(ctx context.Context, sess session.Session, g models.Goals) error
	Overview(ctx context.Context) (*stats.Overview, error)
}

type Importer interface {
	ImportFile(ctx context.Context, sess session.Session, name string, r io.Reader) (*importer.Result, error)
}

// Locator geocodes a stored delivery.
type Locator interface {
	Locate(ctx context.Context, deliveryID string) (*models.Delivery, error)
}

// Dependencies are the services the API is built on. Locator may be nil, in
// which case geocoding is unavailable.
type Dependencies struct {
	Auth          AuthService
	Deliveries    DeliveryService
	EditRequests  EditRequestService
	Neighborhoods NeighborhoodStore
	Volunteers    VolunteerService
	Stats         StatsService
	Importer      Importer
	Locator       Locator
	Broker        events.Broker
	DefaultCity   string
	Logger        *zap.Logger
}

// Handler serves the JSON API.
type Handler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{deps: deps, validate: validator.New(), logger: logger}
}

// jsonResponse is the envelope of every API response.
type jsonResponse struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body jsonResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, jsonResponse{Status: "success", Message: message, Data: data})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation), errors.Is(err, importer.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError reports err to the client. Unexpected errors are logged
// and hidden behind a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSONError(w, code, "Internal server error")
		return
	}
	writeJSONError(w, code, err.Error())
}

// decodeJSON reads the request body into dst and validates it.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return true
		}
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return false
	}
	return true
}

// currentSession returns the session put in the context by AuthMiddleware.
func currentSession(r *http.Request) session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

// Health reports that the process is serving.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSONSuccess(w, "ok", nil)
}
