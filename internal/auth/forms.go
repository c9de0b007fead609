package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ashureev/finboard/internal/authclient"
)

const maxImageSize = 5 << 20

// ErrImageTooLarge is returned for profile images over the upload limit.
var ErrImageTooLarge = errors.New("image exceeds 5 MiB")

// DecodeLoginForm reads a login form from a JSON body or form fields.
func DecodeLoginForm(r *http.Request) (LoginForm, error) {
	var form LoginForm
	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&form); err != nil {
			return LoginForm{}, fmt.Errorf("decode login body: %w", err)
		}
		return form, nil
	}
	if err := r.ParseForm(); err != nil {
		return LoginForm{}, fmt.Errorf("parse login form: %w", err)
	}
	form.Email = r.PostForm.Get("email")
	form.Password = r.PostForm.Get("password")
	return form, nil
}

// DecodeRegisterForm reads a registration from a multipart, urlencoded or
// JSON body. Only multipart bodies can carry the optional image.
func DecodeRegisterForm(r *http.Request) (RegisterForm, error) {
	var form RegisterForm
	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&form); err != nil {
			return RegisterForm{}, fmt.Errorf("decode register body: %w", err)
		}
		return form, nil
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxImageSize + 1<<20); err != nil {
			return RegisterForm{}, fmt.Errorf("parse register form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return RegisterForm{}, fmt.Errorf("parse register form: %w", err)
	}

	form = RegisterForm{
		Username:        r.FormValue("username"),
		Name:            r.FormValue("name"),
		Phone:           r.FormValue("phone"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	if r.MultipartForm == nil {
		return form, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return RegisterForm{}, fmt.Errorf("read image: %w", err)
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxImageSize {
		return RegisterForm{}, ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		return RegisterForm{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageSize {
		return RegisterForm{}, ErrImageTooLarge
	}
	if len(data) > 0 {
		form.Image = &authclient.Image{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     bytes.NewReader(data),
		}
	}
	return form, nil
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func isJSON(r *http.Request) bool { return mediaType(r) == "application/json" }

func isMultipart(r *http.Request) bool { return mediaType(r) == "multipart/form-data" }
