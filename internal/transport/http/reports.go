package httptransport

import (
	"net/http"

	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/platform/httputil"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/requestcontext"
)

// ReportsHandler is a placeholder business surface used to demonstrate the
// authorization gate. It stores nothing.
type ReportsHandler struct{}

type reportsResponse struct {
	Reports []string `json:"reports"`
}

type reportAccepted struct {
	Status      string `json:"status"`
	SubmittedBy string `json:"submitted_by"`
}

// HandleList implements GET /reports (read:reports).
func (h *ReportsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, reportsResponse{Reports: []string{}})
}

// HandleCreate implements POST /reports (write:reports).
func (h *ReportsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusAccepted, reportAccepted{
		Status:      "accepted",
		SubmittedBy: requestcontext.Principal(r.Context()).ID.String(),
	})
}
