package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-api/pkg/logger"
)

const DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// IdentityToolkit implements Provider on the Google Identity Toolkit REST API,
// the backend behind Firebase Authentication.
type IdentityToolkit struct {
	http    *http.Client
	baseURL string
	apiKey  string
	log     *logger.Logger
}

var _ Provider = (*IdentityToolkit)(nil)

func NewIdentityToolkit(apiKey, baseURL string, timeout time.Duration) *IdentityToolkit {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return newIdentityToolkit(&http.Client{Timeout: timeout}, apiKey, baseURL)
}

func newIdentityToolkit(hc *http.Client, apiKey, baseURL string) *IdentityToolkit {
	if baseURL == "" {
		baseURL = DefaultIdentityToolkitURL
	}
	return &IdentityToolkit{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     logger.Named("auth"),
	}
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName"`
	FullName      string `json:"fullName"`
	PhotoURL      string `json:"photoUrl"`
	PhoneNumber   string `json:"phoneNumber"`
}

type sendCodeRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

type sendCodeResponse struct {
	SessionInfo string `json:"sessionInfo"`
}

type phoneSignInRequest struct {
	SessionInfo string `json:"sessionInfo"`
	Code        string `json:"code"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *IdentityToolkit) SignInWithGoogle(ctx context.Context, idToken string) (User, error) {
	if strings.TrimSpace(idToken) == "" {
		return User{}, ErrInvalidCredential
	}
	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("providerId", "google.com")

	var res accountResponse
	err := p.post(ctx, "accounts:signInWithIdp", idpRequest{
		PostBody:            form.Encode(),
		RequestURI:          "http://localhost",
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	}, &res)
	if err != nil {
		return User{}, err
	}
	if res.LocalID == "" {
		return User{}, fmt.Errorf("%w: response carried no account", ErrInvalidCredential)
	}
	return res.toUser(), nil
}

func (p *IdentityToolkit) StartPhoneVerification(ctx context.Context, req PhoneRequest, onEvent func(VerificationEvent)) (string, error) {
	emit := func(ev VerificationEvent) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	var res sendCodeResponse
	err := p.post(ctx, "accounts:sendVerificationCode", sendCodeRequest{
		PhoneNumber:    req.PhoneNumber,
		RecaptchaToken: req.RecaptchaToken,
	}, &res)
	if err == nil && res.SessionInfo == "" {
		err = fmt.Errorf("%w: no session info returned", ErrVerificationFailed)
	}
	if err != nil {
		emit(VerificationEvent{Kind: Failed, Err: err})
		return "", err
	}

	emit(VerificationEvent{Kind: CodeSent, VerificationID: res.SessionInfo})
	return res.SessionInfo, nil
}

func (p *IdentityToolkit) VerifyPhoneCode(ctx context.Context, verificationID, code string) (User, error) {
	if verificationID == "" || strings.TrimSpace(code) == "" {
		return User{}, ErrVerificationFailed
	}
	var res accountResponse
	if err := p.post(ctx, "accounts:signInWithPhoneNumber", phoneSignInRequest{
		SessionInfo: verificationID,
		Code:        strings.TrimSpace(code),
	}, &res); err != nil {
		return User{}, err
	}
	return res.toUser(), nil
}

func (p *IdentityToolkit) post(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	u := p.baseURL + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			p.log.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: failed to read body: %w", method, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		p.log.Info().Str("method", method).Int("status", res.StatusCode).Str("reason", apiErr.Error.Message).Msg("identity provider rejected request")
		return classify(method, res.StatusCode, apiErr.Error.Message)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}

// classify maps Identity Toolkit error reasons onto the package errors.
// Reasons may carry a suffix, e.g. "INVALID_IDP_RESPONSE : detail".
func classify(method string, status int, reason string) error {
	code := reason
	if i := strings.IndexAny(code, " :"); i >= 0 {
		code = code[:i]
	}
	switch code {
	case "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN", "USER_DISABLED", "INVALID_CREDENTIAL_OR_PROVIDER_ID":
		return fmt.Errorf("%w: %s", ErrInvalidCredential, reason)
	case "INVALID_CODE", "INVALID_SESSION_INFO", "SESSION_EXPIRED", "CODE_EXPIRED",
		"INVALID_PHONE_NUMBER", "MISSING_PHONE_NUMBER", "TOO_MANY_ATTEMPTS_TRY_LATER",
		"CAPTCHA_CHECK_FAILED", "INVALID_RECAPTCHA_TOKEN", "MISSING_RECAPTCHA_TOKEN", "QUOTA_EXCEEDED":
		return fmt.Errorf("%w: %s", ErrVerificationFailed, reason)
	}
	if reason == "" {
		reason = http.StatusText(status)
	}
	return fmt.Errorf("%s: identity provider returned %d: %s", method, status, reason)
}

func (r accountResponse) toUser() User {
	name := r.DisplayName
	if name == "" {
		name = r.FullName
	}
	if name == "" {
		name = DefaultUserName
	}
	return User{
		ID:            r.LocalID,
		Name:          name,
		Email:         r.Email,
		PhoneNumber:   r.PhoneNumber,
		PhotoURL:      r.PhotoURL,
		EmailVerified: r.EmailVerified,
		PhoneVerified: r.PhoneNumber != "",
	}
}
