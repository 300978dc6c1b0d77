package vehicle_test

import (
	"context"
	"net/http"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
	"github.com/happyleavesaoc/motorparts/pkg/vehicle"
)

const testVHRJSON = `{
	"reportCard": {
		"items": [
			{
				"itemKey": "engineSystem", "severity": "Display", "value": "0.0",
				"items": [
					{"itemKey": "categoryDesc", "severity": "Display", "value": "Engine"},
					{"itemKey": "oilLife", "severity": "Display", "value": "62%"},
					{"itemKey": "internalCode", "severity": "NonDisplay", "value": "X1"}
				]
			},
			{"itemKey": "brakeSystem", "severity": "Display", "value": null},
			{"itemKey": "tirePressure", "severity": "Display", "value": "N/A"},
			{"itemKey": "odometer", "severity": "Display", "value": 20456}
		]
	}
}`

var _ = Describe("Resource fetchers", func() {
	BeforeEach(func() {
		httpmock.Activate()
		DeferCleanup(httpmock.DeactivateAndReset)
		httpmock.RegisterResponder(http.MethodGet, account.ProfileURL,
			httpmock.NewStringResponder(http.StatusOK, testProfileJSON))
		httpmock.RegisterResponder(http.MethodGet, account.TokenURL,
			httpmock.NewStringResponder(http.StatusOK, `{"token": "salt"}`))
	})

	Describe("GetSummary", func() {
		It("condenses the profile", func() {
			acct := newTestAccount()
			summary, err := vehicle.GetSummary(context.Background(), acct)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.User.Email).To(Equal("jane@example.com"))
			Expect(summary.User.Name).To(Equal("Jane Doe"))
			Expect(summary.Vehicles).To(HaveLen(1))
			Expect(summary.Vehicles[0].VIN).To(Equal(testVIN))
			Expect(summary.Vehicles[0].Model).To(Equal("Compass"), "model should be stripped of year and make")
			Expect(summary.Vehicles[0].Odometer).To(Equal("20456"))
		})

		It("reports an expired session", func() {
			acct := newTestAccount()
			httpmock.RegisterResponder(http.MethodGet, account.ProfileURL,
				httpmock.NewStringResponder(http.StatusOK, `{"errorCode": "403"}`))
			_, err := vehicle.GetSummary(context.Background(), acct)
			Expect(err).To(MatchError(protocol.ErrSessionExpired))
		})
	})

	Describe("HealthReport", func() {
		It("flattens the report card", func() {
			acct := newTestAccount()
			httpmock.RegisterResponder(http.MethodGet, account.HealthReportURL,
				func(req *http.Request) (*http.Response, error) {
					Expect(req.URL.Query().Get("uuid")).To(Equal("veh-1"))
					return httpmock.NewStringResponse(http.StatusOK, testVHRJSON), nil
				})

			report, err := vehicle.New(acct, 0).HealthReport(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(report).To(Equal(vehicle.Report{
				"engineSystem": "Ok",
				"oilLife":      "62%",
				"odometer":     "20456",
			}))
		})

		It("fails when the report card is missing", func() {
			acct := newTestAccount()
			httpmock.RegisterResponder(http.MethodGet, account.HealthReportURL,
				httpmock.NewStringResponder(http.StatusOK, `{"vhrStatus": "NOT_ENROLLED"}`))
			_, err := vehicle.New(acct, 0).HealthReport(context.Background())
			Expect(err).To(MatchError(protocol.ErrDataUnavailable))
		})
	})

	Describe("GetTowGuide", func() {
		It("posts the vehicle's VIN", func() {
			acct := newTestAccount()
			httpmock.RegisterResponder(http.MethodPost, account.TowGuideURL,
				func(req *http.Request) (*http.Response, error) {
					Expect(req.ParseForm()).To(Succeed())
					Expect(req.PostForm.Get("vin")).To(Equal(testVIN))
					return httpmock.NewStringResponse(http.StatusOK, `{"maxTowWeight": "5000 lbs"}`), nil
				})

			guide, err := vehicle.New(acct, 0).GetTowGuide(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(guide).To(HaveKeyWithValue("maxTowWeight", "5000 lbs"))
		})
	})
})
