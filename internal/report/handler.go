package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExporterAPI interface {
	Write(ctx context.Context, w io.Writer, filter travelrequest.ListFilter) (int, error)
}

type Handler struct {
	*transport.BaseHandler
	Exporter ExporterAPI
	now      func() time.Time
}

func NewHandler(baseHandler *transport.BaseHandler, exporter ExporterAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Exporter: exporter, now: time.Now}
}

// ExportHistory handles GET /reports/history.xlsx?status=approved,completed
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	var filter travelrequest.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, s)
			}
		}
	}

	// buffered so a failure halfway still gets a JSON error instead of a torn file
	var buf bytes.Buffer
	if _, err := h.Exporter.Write(r.Context(), &buf, filter); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	name := fmt.Sprintf("travel-history-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Warn("failed to stream workbook", "error", err)
	}
}
