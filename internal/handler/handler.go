package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/model"
	"crowdwatch/internal/web"
)

// LiveService is the live camera pipeline.
type LiveService interface {
	Subscribe() (frames <-chan []byte, cancel func())
	Counts() model.Counts
	SetDetection(active bool)
	DetectionActive() bool
	Running() bool
	Capture(ctx context.Context) (*dto.MediaResult, error)
}

// MediaProcessor stores and annotates uploaded media.
type MediaProcessor interface {
	SaveUpload(name string, r io.Reader) (string, error)
	ProcessImage(ctx context.Context, name string) (*dto.MediaResult, error)
	ProcessVideo(ctx context.Context, name string) (*dto.MediaResult, error)
}

// UserService manages accounts.
type UserService interface {
	Register(ctx context.Context, name, email, password, role string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Get(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Promote(ctx context.Context, email string) error
	Demote(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
}

// Renderer renders server-side pages.
type Renderer interface {
	Render(w io.Writer, name string, data web.Page) error
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.StatusResponse{Status: dto.StatusFail, Message: message})
}

// viewer builds the page header data from the session in r.
func viewer(r *http.Request) *web.Viewer {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return &web.Viewer{
		Name:    claims.Name,
		Email:   claims.Email(),
		Role:    string(claims.Role),
		IsAdmin: claims.IsAdmin(),
	}
}

func isAdmin(r *http.Request) bool {
	claims, _ := auth.FromContext(r.Context())
	return claims.IsAdmin()
}

func sessionEmail(r *http.Request) string {
	if claims, ok := auth.FromContext(r.Context()); ok {
		return claims.Email()
	}
	return "anonymous"
}
