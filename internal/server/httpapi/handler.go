package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/filex"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/dmitrijs2005/vidtube/internal/server/services"
)

const maxJSONBody = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return common.NewValidationError("Invalid request body")
	}
	return nil
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	}
	if err := r.ParseMultipartForm(s.opts.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, common.NewValidationError("Uploaded files are too large"))
			return
		}
		s.writeError(w, r, common.NewValidationError("Invalid form data"))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	avatar, err := s.spool(r, "avatar")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer s.cleanup(r, avatar)

	cover, err := s.spool(r, "coverImage")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer s.cleanup(r, cover)

	user, err := s.sessions.Register(r.Context(), services.RegisterInput{
		Username:       r.PostFormValue("username"),
		Email:          r.PostFormValue("email"),
		FullName:       r.PostFormValue("fullName"),
		Password:       r.PostFormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeOK(w, http.StatusCreated, user, "User registered successfully")
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, pair, err := s.sessions.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.opts.Cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	s.writeOK(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), UserIDFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.opts.Cookies.clearTokens(w)
	s.writeOK(w, http.StatusOK, struct{}{}, "User logged out")
}

// refreshToken takes the token from the refreshToken cookie, falling back to
// the JSON body.
func (s *HTTPServer) refreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, refreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.sessions.RefreshAccessToken(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.opts.Cookies.setTokens(w, pair.AccessToken, pair.RefreshToken)
	s.writeOK(w, http.StatusOK, pair, "Access token refreshed")
}

// spool copies the named multipart file into the upload dir. A missing file
// yields "".
func (s *HTTPServer) spool(r *http.Request, field string) (string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil
	}
	defer f.Close()

	path, err := filex.SpoolToTemp(s.opts.UploadDir, filex.SafeExt(hdr.Filename), f)
	if err != nil {
		return "", common.NewInternalError("Failed to store uploaded file", err)
	}
	return path, nil
}

// cleanup removes a spooled file the uploader did not already consume.
func (s *HTTPServer) cleanup(r *http.Request, path string) {
	if err := filex.RemoveIfExists(path); err != nil {
		s.logger.Warn(r.Context(), "failed to remove spooled file", "path", path, "error", err)
	}
}
