package constants

import "time"

// Delivery statuses
const (
	STATUS_PENDING    = "pending"
	STATUS_ASSIGNED   = "assigned"
	STATUS_IN_TRANSIT = "in_transit"
	STATUS_DELIVERED  = "delivered"
	STATUS_RETURNED   = "returned"
)

// Edit request statuses
const (
	EDIT_REQUEST_STATUS_PENDING  = "pending"
	EDIT_REQUEST_STATUS_APPROVED = "approved"
	EDIT_REQUEST_STATUS_REJECTED = "rejected"
)

// Claim outcomes reported to the volunteer client.
const (
	CLAIM_OUTCOME_NONE    = "none"
	CLAIM_OUTCOME_PARTIAL = "partial"
	CLAIM_OUTCOME_FULL    = "full"
)

// Event types published on the live change feed.
const (
	EVENT_DELIVERY_CREATED   = "delivery.created"
	EVENT_DELIVERY_UPDATED   = "delivery.updated"
	EVENT_DELIVERY_DELETED   = "delivery.deleted"
	EVENT_DELIVERY_CLAIMED   = "delivery.claimed"
	EVENT_DELIVERY_RELEASED  = "delivery.released"
	EVENT_INDEX_REBUILT      = "pending_index.rebuilt"
	EVENT_EDIT_REQUEST_NEW   = "edit_request.created"
	EVENT_EDIT_REQUEST_DONE  = "edit_request.reviewed"
	EVENT_NEIGHBORHOOD_SAVED = "neighborhood.saved"
	EVENT_IMPORT_FINISHED    = "import.finished"
)

const (
	// CLAIM_OVERFETCH_FACTOR is how many index entries are read per requested delivery.
	CLAIM_OVERFETCH_FACTOR = 3
	// MAX_CLAIM_COUNT caps a single claim request.
	MAX_CLAIM_COUNT = 50

	ONLINE_WINDOW = 90 * time.Second

	// DEFAULT_LIST_LIMIT caps admin listings that do not ask for a limit.
	DEFAULT_LIST_LIMIT = 5000

	DEFAULT_CITY          = "חריש"
	DEFAULT_PACKAGE_COUNT = 1
	ADDRESS_COUNTRY       = "ישראל"

	// NEIGHBORHOODS_SHEET is the optional workbook sheet listing extra neighborhoods.
	NEIGHBORHOODS_SHEET = "שכונות"

	WAZE_BASE_URL = "https://waze.com/ul"
)

// VolunteerStatuses are the transitions a volunteer may request on their own delivery.
var VolunteerStatuses = map[string]bool{
	STATUS_IN_TRANSIT: true,
	STATUS_DELIVERED:  true,
	STATUS_RETURNED:   true,
}

// AdminStatuses are the statuses an admin may set directly.
var AdminStatuses = map[string]bool{
	STATUS_PENDING:    true,
	STATUS_ASSIGNED:   true,
	STATUS_IN_TRANSIT: true,
	STATUS_DELIVERED:  true,
	STATUS_RETURNED:   true,
}

// StatusDisplayMap holds the labels used in exported reports.
var StatusDisplayMap = map[string]string{
	STATUS_PENDING:    "ממתין",
	STATUS_ASSIGNED:   "שובץ",
	STATUS_IN_TRANSIT: "בדרך",
	STATUS_DELIVERED:  "נמסר",
	STATUS_RETURNED:   "חזר",
}

// AllStatuses lists delivery statuses in display order.
var AllStatuses = []string{
	STATUS_PENDING,
	STATUS_ASSIGNED,
	STATUS_IN_TRANSIT,
	STATUS_DELIVERED,
	STATUS_RETURNED,
}
