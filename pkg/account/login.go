package account

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/html"

	"github.com/happyleavesaoc/motorparts/internal/log"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

// login runs the portal's two-step sign-in: credentials go to the SSO endpoint, which answers
// with an HTML form carrying a SAML assertion; relaying that assertion to the sign-in page
// completes the session. Cookies accumulate in the jar along the way and are persisted on
// success.
func (a *Account) login(ctx context.Context) error {
	log.Info("logging in (no valid session cookies)")

	// Start from an empty jar so stale cookies can't interfere with the exchange.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	a.client.Jar = jar

	body, err := a.postForm(ctx, SSOURL, url.Values{
		"USER":     {a.creds.Username},
		"PASSWORD": {a.creds.Password},
		"TARGET":   {TargetURL},
	}, "")
	if err != nil {
		return err
	}

	inputs, err := formInputs(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parsing SSO response: %w", err)
	}
	relayState, okRelay := inputs["RelayState"]
	samlResponse, okSAML := inputs["SAMLResponse"]
	if !okRelay || !okSAML {
		// The SSO endpoint re-serves the login form when it rejects credentials.
		return fmt.Errorf("%w: no SAML assertion in SSO response", protocol.ErrAuthenticationFailed)
	}

	if _, err := a.postForm(ctx, SignInURL, url.Values{
		"RelayState":   {relayState},
		"SAMLResponse": {samlResponse},
	}, ""); err != nil {
		return err
	}
	if _, err := a.Get(ctx, SignInURL, nil); err != nil {
		return err
	}

	if err := a.verify(ctx); err != nil {
		if errors.Is(err, protocol.ErrSessionExpired) {
			return fmt.Errorf("%w: portal did not accept sign-in", protocol.ErrAuthenticationFailed)
		}
		return err
	}

	if a.store != nil {
		if err := a.store.Save(a.exportCookies()); err != nil {
			log.Warning("could not save session cookies: %s", err)
		}
	}
	log.Info("logged in as %s", a.creds.Username)
	return nil
}

// formInputs collects the name/value pairs of every <input> element in an HTML document.
func formInputs(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	inputs := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var name, value string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if name != "" {
				inputs[name] = value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return inputs, nil
}
