package auth

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLoginFormJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	form, err := DecodeLoginForm(req)
	require.NoError(t, err)
	assert.Equal(t, LoginForm{Email: "a@b.co", Password: "pw"}, form)
}

func TestDecodeLoginFormURLEncoded(t *testing.T) {
	body := url.Values{"email": {"a@b.co"}, "password": {"pw"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := DecodeLoginForm(req)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", form.Email)
	assert.Equal(t, "pw", form.Password)
}

func TestDecodeLoginFormBadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeLoginForm(req)
	assert.Error(t, err)
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "me.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDecodeRegisterFormMultipart(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"username":        "ann",
		"name":            "Ann",
		"phone":           "555",
		"email":           "ann@example.com",
		"password":        "pw",
		"confirmPassword": "pw",
	}, []byte("png-bytes"))

	form, err := DecodeRegisterForm(req)
	require.NoError(t, err)
	assert.Equal(t, "ann", form.Username)
	assert.Equal(t, "pw", form.ConfirmPassword)
	require.NotNil(t, form.Image)
	assert.Equal(t, "me.png", form.Image.Filename)

	data, err := io.ReadAll(form.Image.Content)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestDecodeRegisterFormWithoutImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"username": "ann"}, nil)

	form, err := DecodeRegisterForm(req)
	require.NoError(t, err)
	assert.Equal(t, "ann", form.Username)
	assert.Nil(t, form.Image)
}

func TestDecodeRegisterFormRejectsLargeImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"username": "ann"}, bytes.Repeat([]byte("x"), maxImageSize+1))

	_, err := DecodeRegisterForm(req)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
