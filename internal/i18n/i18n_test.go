package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator_T(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		locale Locale
		path   string
		params map[string]string
		want   string
	}{
		{"vietnamese leaf", Vietnamese, "common.negotiable", nil, "Thỏa thuận"},
		{"english leaf", English, "common.negotiable", nil, "Negotiable"},
		{"nested path", English, "email.new_message.subject", map[string]string{"sender": "Lan"}, "New message from Lan"},
		{"param replaced", Vietnamese, "errors.rate_limited", map[string]string{"seconds": "42"}, "Bạn thao tác quá nhanh, vui lòng thử lại sau 42 giây"},
		{"unused params ignored", English, "errors.forbidden", map[string]string{"x": "y"}, "You do not have access"},
		{"missing key returns path", English, "errors.does_not_exist", nil, "errors.does_not_exist"},
		{"missing root returns path", Vietnamese, "nope", nil, "nope"},
		{"non-leaf returns path", English, "errors", nil, "errors"},
		{"path through a leaf returns path", English, "common.negotiable.extra", nil, "common.negotiable.extra"},
		{"unknown locale falls back to default", Locale("fr"), "common.retry", nil, "Thử lại"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.T(tt.locale, tt.path, tt.params))
		})
	}
}

func TestTranslator_ParamWithoutPlaceholderIsLiteral(t *testing.T) {
	tr := MustNew()
	got := tr.T(English, "errors.rate_limited", map[string]string{"seconds": "{seconds}"})
	assert.Equal(t, "Too many requests, please retry in {seconds} seconds", got)
}

func TestTranslator_ParamValuesAreNotReexpanded(t *testing.T) {
	tr := MustNew()
	params := map[string]string{
		"name":    "{preview}",
		"sender":  "Nhà máy {url}",
		"preview": "giá {name} là 100k",
		"url":     "https://jobmatch.vn/messages/1",
	}
	want := "Hi {preview},\n\nNhà máy {url} sent you a message:\n\n\"giá {name} là 100k\"\n\nOpen it here: https://jobmatch.vn/messages/1"

	// map iteration order varies between runs; the output must not
	for range 50 {
		require.Equal(t, want, tr.T(English, "email.new_message.body", params))
	}
}

func TestParseLocale(t *testing.T) {
	loc, ok := ParseLocale(" EN ")
	assert.True(t, ok)
	assert.Equal(t, English, loc)

	_, ok = ParseLocale("fr")
	assert.False(t, ok)
}

func TestFromRequest(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, Vietnamese, FromRequest(r))
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "en"})
		assert.Equal(t, English, FromRequest(r))
	})

	t.Run("query wins over cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?lang=vi", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "en"})
		assert.Equal(t, Vietnamese, FromRequest(r))
	})

	t.Run("bad cookie ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "klingon"})
		assert.Equal(t, Vietnamese, FromRequest(r))
	})
}

func TestSetCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetCookie(w, English)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "en", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
}
