package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the storefront a review came from.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Platforms lists every storefront in sync order.
var Platforms = []Platform{PlatformIOS, PlatformAndroid}

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformIOS, PlatformAndroid:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
	}
}

// AppPlatform is the set of storefronts an app is published on.
type AppPlatform string

const (
	AppPlatformIOS     AppPlatform = "ios"
	AppPlatformAndroid AppPlatform = "android"
	AppPlatformBoth    AppPlatform = "both"
)

func ParseAppPlatform(s string) (AppPlatform, error) {
	switch p := AppPlatform(strings.ToLower(strings.TrimSpace(s))); p {
	case AppPlatformIOS, AppPlatformAndroid, AppPlatformBoth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
	}
}

// Includes reports whether reviews for p should be synced for this app.
func (a AppPlatform) Includes(p Platform) bool {
	return a == AppPlatformBoth || string(a) == string(p)
}

const DefaultLocale = "cn"

type TrackedApp struct {
	ID             int64       `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Platform       AppPlatform `db:"platform" json:"platform"`
	StoreIDIOS     *string     `db:"app_store_id" json:"app_store_id,omitempty"`
	StoreIDAndroid *string     `db:"play_store_id" json:"play_store_id,omitempty"`
	LocaleIOS      string      `db:"app_store_country" json:"app_store_country"`
	LocaleAndroid  string      `db:"play_store_country" json:"play_store_country"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// StoreID returns the external id configured for the storefront, or "" when absent.
func (a *TrackedApp) StoreID(p Platform) string {
	var id *string
	switch p {
	case PlatformIOS:
		id = a.StoreIDIOS
	case PlatformAndroid:
		id = a.StoreIDAndroid
	}
	if id == nil {
		return ""
	}
	return strings.TrimSpace(*id)
}

func (a *TrackedApp) Locale(p Platform) string {
	locale := a.LocaleAndroid
	if p == PlatformIOS {
		locale = a.LocaleIOS
	}
	if locale == "" {
		return DefaultLocale
	}
	return locale
}

// NewApp is the input for registering an app.
type NewApp struct {
	Name           string      `json:"name"`
	Platform       AppPlatform `json:"platform"`
	StoreIDIOS     *string     `json:"app_store_id,omitempty"`
	StoreIDAndroid *string     `json:"play_store_id,omitempty"`
	LocaleIOS      string      `json:"app_store_country,omitempty"`
	LocaleAndroid  string      `json:"play_store_country,omitempty"`
}

func (n *NewApp) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidApp)
	}
	p, err := ParseAppPlatform(string(n.Platform))
	if err != nil {
		return err
	}
	n.Platform = p
	if n.LocaleIOS == "" {
		n.LocaleIOS = DefaultLocale
	}
	if n.LocaleAndroid == "" {
		n.LocaleAndroid = DefaultLocale
	}
	return nil
}

// AppUpdate enumerates every mutable attribute of a TrackedApp. Nil fields are left unchanged.
type AppUpdate struct {
	Name           *string      `json:"name,omitempty"`
	Platform       *AppPlatform `json:"platform,omitempty"`
	StoreIDIOS     *string      `json:"app_store_id,omitempty"`
	StoreIDAndroid *string      `json:"play_store_id,omitempty"`
	LocaleIOS      *string      `json:"app_store_country,omitempty"`
	LocaleAndroid  *string      `json:"play_store_country,omitempty"`
}

func (u AppUpdate) IsEmpty() bool {
	return u.Name == nil && u.Platform == nil && u.StoreIDIOS == nil &&
		u.StoreIDAndroid == nil && u.LocaleIOS == nil && u.LocaleAndroid == nil
}

func (u AppUpdate) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidApp)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidApp)
	}
	if u.Platform != nil {
		if _, err := ParseAppPlatform(string(*u.Platform)); err != nil {
			return err
		}
	}
	if u.LocaleIOS != nil && strings.TrimSpace(*u.LocaleIOS) == "" {
		return fmt.Errorf("%w: app_store_country cannot be empty", ErrInvalidApp)
	}
	if u.LocaleAndroid != nil && strings.TrimSpace(*u.LocaleAndroid) == "" {
		return fmt.Errorf("%w: play_store_country cannot be empty", ErrInvalidApp)
	}
	return nil
}

// Apply copies the set fields onto app. An empty store id clears it.
func (u AppUpdate) Apply(app *TrackedApp) {
	if u.Name != nil {
		app.Name = strings.TrimSpace(*u.Name)
	}
	if u.Platform != nil {
		p, _ := ParseAppPlatform(string(*u.Platform))
		app.Platform = p
	}
	if u.StoreIDIOS != nil {
		app.StoreIDIOS = emptyToNil(*u.StoreIDIOS)
	}
	if u.StoreIDAndroid != nil {
		app.StoreIDAndroid = emptyToNil(*u.StoreIDAndroid)
	}
	if u.LocaleIOS != nil {
		app.LocaleIOS = strings.ToLower(strings.TrimSpace(*u.LocaleIOS))
	}
	if u.LocaleAndroid != nil {
		app.LocaleAndroid = strings.ToLower(strings.TrimSpace(*u.LocaleAndroid))
	}
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
