package vehicle_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/cache"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
	"github.com/happyleavesaoc/motorparts/pkg/vehicle"
)

const (
	testVIN       = "1C4RJFBG5FC123456"
	testRequestID = "req-42"
)

const testProfileJSON = `{
	"userProfile": {"eMail": "jane@example.com", "firstName": "Jane", "lastName": "Doe"},
	"vehicles": [{"vin": "` + testVIN + `", "year": "2017", "make": "Jeep",
		"model": "2017 Jeep Compass", "odometerMileage": "20456", "uuid": "veh-1"}]
}`

// newTestAccount returns an Account signed in through the saved-cookie path, so tests only need
// responders for the endpoints they exercise.
func newTestAccount() *account.Account {
	store := &cache.MemoryStore{}
	Expect(store.Save(cache.Jar{
		"https://www.mopar.com": {{Name: "JSESSIONID", Value: "cached"}},
	})).To(Succeed())
	acct, err := account.Login(context.Background(), account.Credentials{
		Username: "jane", Password: "hunter2", PIN: "9999",
	}, store)
	Expect(err).NotTo(HaveOccurred())
	return acct
}

func statusCounts() map[string]int {
	return httpmock.GetCallCountInfo()
}

var _ = Describe("SendCommand", func() {
	var car *vehicle.Vehicle

	dispatchResponder := func(endpoint string) {
		httpmock.RegisterResponder(http.MethodPost, endpoint, func(req *http.Request) (*http.Response, error) {
			Expect(req.ParseForm()).To(Succeed())
			Expect(req.PostForm.Get("vin")).To(Equal(testVIN))
			Expect(req.PostForm.Get("pin")).To(Equal("9999"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"serviceRequestId": testRequestID,
			})
		})
	}

	statusSequence := func(endpoint string, states ...string) *int {
		polls := new(int)
		httpmock.RegisterResponder(http.MethodGet, endpoint, func(req *http.Request) (*http.Response, error) {
			Expect(req.URL.Query().Get("remoteServiceRequestID")).To(Equal(testRequestID))
			Expect(req.URL.Query().Get("vin")).To(Equal(testVIN))
			i := *polls
			*polls++
			if i >= len(states) {
				i = len(states) - 1
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"status": states[i],
			})
		})
		return polls
	}

	BeforeEach(func() {
		httpmock.Activate()
		DeferCleanup(httpmock.DeactivateAndReset)
		httpmock.RegisterResponder(http.MethodGet, account.ProfileURL,
			httpmock.NewStringResponder(http.StatusOK, testProfileJSON))
		httpmock.RegisterResponder(http.MethodGet, account.TokenURL,
			httpmock.NewStringResponder(http.StatusOK, `{"token": "salt"}`))

		car = vehicle.New(newTestAccount(), 0)
		car.PollInterval = time.Millisecond
		car.MaxPollAttempts = 5
	})

	It("returns a pending status without polling when not waiting for acknowledgement", func() {
		dispatchResponder(account.LockURL)
		status, err := car.SendCommand(context.Background(), vehicle.CommandLock, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StatePending))
		Expect(status.RequestID).To(Equal(testRequestID))
		Expect(statusCounts()["GET "+account.LockURL]).To(BeZero())
	})

	It("returns a terminal status seen on the first poll", func() {
		dispatchResponder(account.LockURL)
		polls := statusSequence(account.LockURL, "SUCCESS")
		status, err := car.SendCommand(context.Background(), vehicle.CommandLock, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StateSuccess))
		Expect(*polls).To(Equal(1))
	})

	It("polls until a pending command succeeds", func() {
		dispatchResponder(account.EngineURL)
		polls := statusSequence(account.EngineURL, "PENDING", "PENDING", "PENDING", "SUCCESS")
		status, err := car.SendCommand(context.Background(), vehicle.CommandEngineStart, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StateSuccess))
		Expect(*polls).To(Equal(4))
	})

	It("reports failure without retrying the command", func() {
		dispatchResponder(account.LockURL)
		polls := statusSequence(account.LockURL, "PENDING", "FAILED")
		status, err := car.SendCommand(context.Background(), vehicle.CommandUnlock, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StateFailure))
		Expect(*polls).To(Equal(2))
		Expect(statusCounts()["POST "+account.LockURL]).To(Equal(1))
	})

	It("times out instead of polling forever", func() {
		dispatchResponder(account.LockURL)
		polls := statusSequence(account.LockURL, "PENDING")
		status, err := car.SendCommand(context.Background(), vehicle.CommandLock, true)
		Expect(err).To(MatchError(protocol.ErrCommandTimeout))
		Expect(protocol.MayHaveSucceeded(err)).To(BeTrue())
		Expect(status.State).To(Equal(vehicle.StatePending))
		Expect(*polls).To(Equal(car.MaxPollAttempts))
	})

	It("masks a transient transport failure during polling", func() {
		dispatchResponder(account.AlarmURL)
		polls := 0
		httpmock.RegisterResponder(http.MethodGet, account.AlarmURL, func(req *http.Request) (*http.Response, error) {
			polls++
			if polls == 1 {
				return nil, errors.New("connection reset")
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"status": "SUCCESS"})
		})
		status, err := car.SendCommand(context.Background(), vehicle.CommandHornLights, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StateSuccess))
		Expect(polls).To(Equal(2))
	})

	It("keeps polling through an unrecognized status value", func() {
		dispatchResponder(account.LockURL)
		polls := statusSequence(account.LockURL, "THROTTLED", "SUCCESS")
		status, err := car.SendCommand(context.Background(), vehicle.CommandLock, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.State).To(Equal(vehicle.StateSuccess))
		Expect(*polls).To(Equal(2))
	})

	It("stops polling when the context is cancelled", func() {
		dispatchResponder(account.LockURL)
		statusSequence(account.LockURL, "PENDING")
		car.PollInterval = 50 * time.Millisecond
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		_, err := car.SendCommand(ctx, vehicle.CommandLock, true)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("rejects commands the portal does not support", func() {
		_, err := car.SendCommand(context.Background(), vehicle.Command("DANCE"), false)
		Expect(err).To(MatchError(protocol.ErrUnsupportedCommand))
	})

	It("rejects a vehicle index outside the profile", func() {
		other := vehicle.New(newTestAccount(), 3)
		_, err := other.SendCommand(context.Background(), vehicle.CommandLock, false)
		Expect(err).To(MatchError(protocol.ErrVehicleNotFound))
	})

	It("surfaces a dispatch response without a request identifier", func() {
		httpmock.RegisterResponder(http.MethodPost, account.LockURL,
			httpmock.NewStringResponder(http.StatusOK, `{}`))
		_, err := car.SendCommand(context.Background(), vehicle.CommandLock, true)
		Expect(err).To(MatchError(protocol.ErrDataUnavailable))
	})
})

var _ = Describe("Command wrappers", func() {
	BeforeEach(func() {
		httpmock.Activate()
		DeferCleanup(httpmock.DeactivateAndReset)
		httpmock.RegisterResponder(http.MethodGet, account.ProfileURL,
			httpmock.NewStringResponder(http.StatusOK, testProfileJSON))
		httpmock.RegisterResponder(http.MethodGet, account.TokenURL,
			httpmock.NewStringResponder(http.StatusOK, `{"token": "salt"}`))
	})

	DescribeTable("dispatches to the right endpoint and waits",
		func(endpoint string, action string, send func(*vehicle.Vehicle, context.Context) (vehicle.CommandStatus, error)) {
			httpmock.RegisterResponder(http.MethodPost, endpoint, func(req *http.Request) (*http.Response, error) {
				Expect(req.ParseForm()).To(Succeed())
				Expect(req.PostForm.Get("action")).To(Equal(action))
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
					"serviceRequestId": testRequestID,
				})
			})
			httpmock.RegisterResponder(http.MethodGet, endpoint, func(req *http.Request) (*http.Response, error) {
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"status": "SUCCESS"})
			})

			car := vehicle.New(newTestAccount(), 0)
			car.PollInterval = time.Millisecond
			status, err := send(car, context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(vehicle.StateSuccess))
			Expect(statusCounts()[fmt.Sprintf("GET %s", endpoint)]).To(Equal(1))
		},
		Entry("lock", account.LockURL, "LOCK",
			func(v *vehicle.Vehicle, ctx context.Context) (vehicle.CommandStatus, error) { return v.Lock(ctx) }),
		Entry("unlock", account.LockURL, "UNLOCK",
			func(v *vehicle.Vehicle, ctx context.Context) (vehicle.CommandStatus, error) { return v.Unlock(ctx) }),
		Entry("engine start", account.EngineURL, "START",
			func(v *vehicle.Vehicle, ctx context.Context) (vehicle.CommandStatus, error) { return v.EngineStart(ctx) }),
		Entry("engine stop", account.EngineURL, "STOP",
			func(v *vehicle.Vehicle, ctx context.Context) (vehicle.CommandStatus, error) { return v.EngineStop(ctx) }),
		Entry("horn and lights", account.AlarmURL, "HORN_LIGHT",
			func(v *vehicle.Vehicle, ctx context.Context) (vehicle.CommandStatus, error) { return v.HornLights(ctx) }),
	)
})
