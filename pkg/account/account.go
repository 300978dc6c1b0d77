// Package account authenticates against the Mopar owner portal and issues requests on behalf of
// the signed-in user.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/happyleavesaoc/motorparts/internal/log"
	"github.com/happyleavesaoc/motorparts/pkg/cache"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

// Portal endpoints. The status endpoint for a command is the same URL the command was posted to.
const (
	SignInURL = "https://www.mopar.com/sign-in"
	SSOURL    = "https://sso.extra.chrysler.com/siteminderagent/forms/b2clogin.fcc"
	TargetURL = "https://sso.extra.chrysler.com/cgi-bin/moparproderedirect.cgi?" +
		"env=prd&PartnerSpId=B2CAEM&IdpAdapterId=B2CSM&appID=MOPUSEN_C&" +
		"TargetResource=" + SignInURL
	ProfileURL      = "https://www.mopar.com/moparsvc/user/getProfile"
	TokenURL        = "https://www.mopar.com/moparsvc/token"
	TowGuideURL     = "https://www.mopar.com/moparsvc/vehicle/tow-guide/vin"
	HealthReportURL = "https://www.mopar.com/moparsvc/getVHR"
	LockURL         = "https://www.mopar.com/moparsvc/connect/lock"
	EngineURL       = "https://www.mopar.com/moparsvc/connect/engine"
	AlarmURL        = "https://www.mopar.com/moparsvc/connect/alarm"
)

// The portal serves a different login flow to clients that don't look like a browser.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/64.0.3282.140 Safari/537.36 Edge/18.17763"

const csrfHeader = "mopar-csrf-salt"

// MaxResponseLength caps how much of a response body the client will read.
const MaxResponseLength = 1 << 20

// Origins whose cookies are persisted between runs.
var portalOrigins = []string{
	"https://www.mopar.com",
	"https://sso.extra.chrysler.com",
}

// Credentials identify a portal user. The PIN authorizes remote commands and is sent with every
// command dispatch, not during login.
type Credentials struct {
	Username string
	Password string
	PIN      string
}

// Account is an authenticated portal session. The embedded cookie jar is safe for concurrent
// reads, so independent commands may be issued from separate goroutines. Re-authentication is not
// internally serialized; callers should not run Login concurrently for the same store.
type Account struct {
	// UserAgent is sent with every request. Defaults to a browser-style string the portal
	// accepts.
	UserAgent string

	client *http.Client
	creds  Credentials
	store  cache.Store
}

// Login returns an authenticated Account.
//
// If store holds a fresh cookie set, the portal is probed with it first; acceptance skips the
// login exchange entirely. Otherwise the full two-step login runs (credentials against the SSO
// endpoint, then the SAML relay to the sign-in page) and the resulting cookies are written back
// to store. A nil store disables persistence.
func Login(ctx context.Context, creds Credentials, store cache.Store) (*Account, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	acct := &Account{
		UserAgent: defaultUserAgent,
		client:    &http.Client{Jar: jar},
		creds:     creds,
		store:     store,
	}

	if store != nil {
		saved, err := store.Load()
		if err != nil {
			log.Warning("could not load saved cookies: %s", err)
		}
		if saved != nil {
			acct.importCookies(saved)
			err := acct.verify(ctx)
			if err == nil {
				log.Info("reusing saved session cookies")
				return acct, nil
			}
			if !sessionRejected(err) {
				return nil, err
			}
			log.Info("saved cookies rejected by portal")
		}
	}

	if err := acct.login(ctx); err != nil {
		return nil, err
	}
	return acct, nil
}

// PIN returns the command-authorization PIN supplied at login.
func (a *Account) PIN() string {
	return a.creds.PIN
}

// verify probes the profile endpoint to check whether the portal accepts the current cookies.
func (a *Account) verify(ctx context.Context) error {
	body, err := a.Get(ctx, ProfileURL, nil)
	if err != nil {
		return err
	}
	return CheckSession(body)
}

// sessionRejected reports whether err means the portal refused the current cookies, as opposed
// to a transport-level failure. Refusal shows up either as the in-band session-expired signal or
// as an outright 4xx.
func sessionRejected(err error) bool {
	if errors.Is(err, protocol.ErrSessionExpired) {
		return true
	}
	var httpErr *protocol.HttpError
	return errors.As(err, &httpErr) && httpErr.Code >= 400 && httpErr.Code < 500
}

// CheckSession inspects a portal response body for the signs of an expired session: a
// non-JSON payload (the portal serves the login page HTML) or an embedded 403 error code.
func CheckSession(body []byte) error {
	var probe struct {
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return protocol.ErrSessionExpired
	}
	if probe.ErrorCode == "403" {
		return protocol.ErrSessionExpired
	}
	return nil
}

// Get issues a GET request and returns the response body. Responses other than 200 are returned
// as [protocol.HttpError].
func (a *Account) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", endpoint, err)
	}
	return a.do(request)
}

// PostForm fetches a CSRF token and issues a form-encoded POST carrying it. All portal service
// POSTs require the token header.
func (a *Account) PostForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	token, err := a.csrfToken(ctx)
	if err != nil {
		return nil, err
	}
	return a.postForm(ctx, endpoint, form, token)
}

func (a *Account) postForm(ctx context.Context, endpoint string, form url.Values, csrfToken string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", endpoint, err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if csrfToken != "" {
		request.Header.Set(csrfHeader, csrfToken)
	}
	return a.do(request)
}

func (a *Account) do(request *http.Request) ([]byte, error) {
	request.Header.Set("User-Agent", a.UserAgent)
	request.Header.Set("Accept", "*/*")
	log.Debug("%s %s", request.Method, request.URL)
	response, err := a.client.Do(request)
	if err != nil {
		return nil, &protocol.CommandError{
			Err:               fmt.Errorf("error requesting %s: %w", request.URL, err),
			PossibleSuccess:   request.Method != "GET",
			PossibleTemporary: true,
		}
	}
	defer response.Body.Close()
	body, err := io.ReadAll(io.LimitReader(response.Body, MaxResponseLength))
	if err != nil {
		return nil, &protocol.CommandError{Err: err, PossibleSuccess: true, PossibleTemporary: true}
	}
	log.Debug("Server returned %d: %s", response.StatusCode, body)
	if response.StatusCode != http.StatusOK {
		return nil, &protocol.HttpError{Code: response.StatusCode, Message: string(body)}
	}
	return body, nil
}

func (a *Account) csrfToken(ctx context.Context) (string, error) {
	body, err := a.Get(ctx, TokenURL, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		// The token endpoint serves the login page when the session has lapsed.
		return "", protocol.ErrSessionExpired
	}
	return resp.Token, nil
}

func (a *Account) importCookies(saved cache.Jar) {
	for origin, cookies := range saved {
		u, err := url.Parse(origin)
		if err != nil {
			log.Warning("skipping saved cookies for unparseable origin %q", origin)
			continue
		}
		restored := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			restored = append(restored, &http.Cookie{Name: c.Name, Value: c.Value})
		}
		a.client.Jar.SetCookies(u, restored)
	}
}

func (a *Account) exportCookies() cache.Jar {
	jar := make(cache.Jar)
	for _, origin := range portalOrigins {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		for _, c := range a.client.Jar.Cookies(u) {
			jar[origin] = append(jar[origin], cache.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return jar
}
