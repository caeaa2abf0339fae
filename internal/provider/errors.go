package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"strings"
)

var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("API credential is not configured")
	// ErrNoAudio is returned when a speech response carries no audio data.
	ErrNoAudio = errors.New("provider returned no audio data")
	// ErrNoImage is returned when an image response carries no image and no
	// reason could be extracted.
	ErrNoImage = errors.New("provider returned no image; the request may have been declined for an unknown reason")
	// ErrPremiumDisabled is returned for premium requests once the credential
	// is known to lack premium access.
	ErrPremiumDisabled = errors.New("this feature requires a credential with premium access")
)

// Kind classifies failures into the categories users act on differently.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindPermission
	KindRateLimit
	KindSafety
	KindChunkSynthesis
	KindEmptyInput
	KindClientIO
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindRateLimit:
		return "rate_limit"
	case KindSafety:
		return "safety"
	case KindChunkSynthesis:
		return "chunk_synthesis"
	case KindEmptyInput:
		return "empty_input"
	case KindClientIO:
		return "client_io"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MessagePermission = "Permission error (404 NOT FOUND): this API key cannot access the feature. " +
		"This usually happens when the Google Cloud project is not linked to a billing account. " +
		"See cloud.google.com/billing/docs/how-to/create-billing-account"
	MessageAuth      = "Your API key is invalid or has expired. Please enter a new key."
	MessageRateLimit = "You have reached the API usage limit (RESOURCE_EXHAUSTED). Please wait and try again later. " +
		"Track usage at ai.dev/usage; limits are described at ai.google.dev/gemini-api/docs/rate-limits"
	MessageEmptyInput = "There is no successfully generated audio to merge."
)

// Error is a classified failure carrying the message shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClearsCredential reports whether the stored credential must be discarded.
func (e *Error) ClearsCredential() bool {
	return e.Kind == KindAuth
}

// DowngradesPremium reports whether the premium flag must become "no".
func (e *Error) DowngradesPremium() bool {
	return e.Kind == KindPermission
}

// APIError is a structured failure reported by a provider.
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Code != 0 {
		fmt.Fprintf(&b, "%d ", e.Code)
	}
	if e.Status != "" {
		b.WriteString(e.Status)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// SafetyBlockError reports that the provider declined to produce content.
func SafetyBlockError(reason string) *Error {
	return &Error{Kind: KindSafety, Message: reason}
}

var (
	permissionMarkers = []string{"Requested entity was not found.", "NOT_FOUND", "404"}
	authMarkers       = []string{"API key not valid", "API_KEY_INVALID", "PERMISSION_DENIED", "403", "400"}
)

// Classify converts err into a user-facing *Error. premium marks requests for
// premium features, where a not-found failure means missing billing access
// rather than a bad key. Classify returns nil for a nil error.
func Classify(err error, premium bool) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var chunk interface{ ChunkIndex() int }
	if errors.As(err, &chunk) {
		return &Error{
			Kind:    KindChunkSynthesis,
			Message: fmt.Sprintf("Part %d failed: %s", chunk.ChunkIndex()+1, describe(err)),
			Err:     err,
		}
	}

	if errors.Is(err, ErrMissingCredential) {
		return &Error{Kind: KindAuth, Message: MessageAuth, Err: err}
	}

	if isClientIO(err) {
		return &Error{Kind: KindClientIO, Message: "Could not read the input file: " + err.Error(), Err: err}
	}

	msg := err.Error()
	status, message, isJSON := parseErrorJSON(msg)

	// Structured rate limits take precedence over the substring markers.
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == "RESOURCE_EXHAUSTED" || apiErr.Code == 429) {
		return &Error{Kind: KindRateLimit, Message: MessageRateLimit, Err: err}
	}
	if isJSON && status == "RESOURCE_EXHAUSTED" {
		return &Error{Kind: KindRateLimit, Message: MessageRateLimit, Err: err}
	}

	if premium && containsAny(msg, permissionMarkers) {
		return &Error{Kind: KindPermission, Message: MessagePermission, Err: err}
	}

	if containsAny(msg, authMarkers) {
		return &Error{Kind: KindAuth, Message: MessageAuth, Err: err}
	}

	if isJSON {
		msg = message
	}

	return &Error{Kind: KindUnknown, Message: "An error occurred: " + msg, Err: err}
}

// EmptyInputError wraps a merge attempted with no successful clips.
func EmptyInputError(err error) *Error {
	return &Error{Kind: KindEmptyInput, Message: MessageEmptyInput, Err: err}
}

func describe(err error) string {
	if c := Classify(errors.Unwrap(err), false); c != nil {
		return c.Message
	}
	return err.Error()
}

func isClientIO(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) || errors.Is(err, image.ErrFormat)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// parseErrorJSON extracts error.status and error.message from a JSON error
// body such as {"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"..."}}.
func parseErrorJSON(s string) (status, message string, ok bool) {
	var body struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &body); err != nil {
		return "", "", false
	}
	if body.Error.Message == "" {
		return "", "", false
	}
	return body.Error.Status, body.Error.Message, true
}
