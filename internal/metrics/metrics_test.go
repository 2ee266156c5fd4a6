package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal/metrics"
	"github.com/frahmantamala/travel-approval/internal/store/storetest"
)

var _ = Describe("metrics", func() {
	scrape := func() string {
		rec := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	It("exposes workflow counters", func() {
		metrics.RecordTransition("approve", "pending_head", "pending_admin")
		metrics.RecordConflict("approve")
		metrics.RecordAvailabilityFailOpen("vehicle")
		metrics.RecordNotification("nats", errors.New("no servers"))

		body := scrape()
		Expect(body).To(ContainSubstring(`travel_request_transitions_total{action="approve",from="pending_head",to="pending_admin"}`))
		Expect(body).To(ContainSubstring(`travel_request_conflicts_total{action="approve"}`))
		Expect(body).To(ContainSubstring(`availability_fail_open_total{kind="vehicle"}`))
		Expect(body).To(ContainSubstring(`notifications_delivered_total{result="error",sink="nats"}`))
	})

	It("samples the connection pool", func() {
		db, err := storetest.Open()
		Expect(err).NotTo(HaveOccurred())
		defer storetest.Close(db)

		Expect(metrics.UpdateDatabaseConnections(db)).To(Succeed())
		Expect(scrape()).To(ContainSubstring("database_connections_open"))
		Expect(metrics.UpdateDatabaseConnections(nil)).To(HaveOccurred())
	})
})
