package http

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/buildinfo"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, messageResponse{Message: "User created successfully"})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type signInResponse struct {
	Token string     `json:"token"`
	User  signInUser `json:"user"`
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, signInResponse{
		Token: res.Token,
		User:  signInUser{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email},
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Profile(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, p)
}

type versionResponse struct {
	buildinfo.Info
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, versionResponse{Info: buildinfo.Get(), Timestamp: time.Now().UTC()})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
